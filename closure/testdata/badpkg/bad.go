package badpkg

// Broken references a name that no scope defines.
func Broken() int {
	return undefinedHelper() + 1
}
