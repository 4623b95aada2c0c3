package version

// Build holds the build identifier, injected via -ldflags. Default "dev".
var Build = "dev"

// String is the identifier printed by the version command.
func String() string {
	return "pricecheck " + Build
}
