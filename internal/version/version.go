package version

// Version is the released shearwater version string.
const Version = "1.1.0"
