package rhema

// Version is the current release version.
const Version = "0.1.0"
