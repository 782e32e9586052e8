package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	rhema "github.com/mverlaine/rhema/core"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive session against the local store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepl()
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval EXPR",
	Short: "Evaluate one expression against the local store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEval(args[0])
	},
}

var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Export all definitions to a gzipped archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(args[0])
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import definitions from a gzipped archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(args[0])
	},
}

func init() {
	rootCmd.AddCommand(replCmd, evalCmd, exportCmd, importCmd)
}

func openSession() (*rhema.Session, error) {
	store, err := rhema.OpenStore(cfg.StoreBackend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	session, err := rhema.NewSession(store, cfg.MaxTraces)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init session: %w", err)
	}
	return session, nil
}

func runRepl() error {
	session, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Println("rhema interactive session (ctrl-d to exit)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("rhema> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		val, err := session.Run(line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(val.String())
	}
	fmt.Println()
	return scanner.Err()
}

func runEval(expr string) error {
	session, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	val, err := session.Run(expr)
	if err != nil {
		return err
	}
	fmt.Println(val.String())
	return nil
}

func runExport(path string) error {
	store, err := rhema.OpenStore(cfg.StoreBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	if err := rhema.ExportArchive(store, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runImport(path string) error {
	session, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	n, err := rhema.ImportArchive(session, f)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d definitions\n", n)
	return nil
}
