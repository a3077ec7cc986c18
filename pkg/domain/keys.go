package domain

import "strings"

// Key layout. Every segment is separated by '!'; names are escaped so they
// never contain it.
//
//	!pkg!<name>@<version>                          -> package document
//	!pkg-latest!<name>                             -> package document (latest)
//	!latest-version!<name>                         -> version string
//	!index!<kind>!<dep>!<dependant>@<version>      -> encoded interval set
//	!index-latest!<kind>!<dep>!<dependant>         -> {version, intervals}
const (
	prefixPackage       = "!pkg!"
	prefixLatestPackage = "!pkg-latest!"
	prefixLatestVersion = "!latest-version!"
	prefixIndex         = "!index!"
	prefixLatestIndex   = "!index-latest!"
	keySeparator        = "!"
)

var nameEscaper = strings.NewReplacer("%", "%25", "!", "%21")

// escapeName makes a name safe to embed between separators.
func escapeName(name string) string {
	return nameEscaper.Replace(name)
}

func packageKey(name, version string) string {
	return prefixPackage + escapeName(name) + "@" + version
}

func latestPackageKey(name string) string {
	return prefixLatestPackage + escapeName(name)
}

func latestVersionKey(name string) string {
	return prefixLatestVersion + escapeName(name)
}

// indexPrefix returns the key prefix shared by all records of dep.
func indexPrefix(kind Kind, latest bool, dep string) string {
	p := prefixIndex
	if latest {
		p = prefixLatestIndex
	}
	return p + string(kind) + keySeparator + escapeName(dep) + keySeparator
}

// indexKey: dependant is name@version for versioned records and the bare
// name for latest ones.
func indexKey(kind Kind, latest bool, dep, dependant string) string {
	return indexPrefix(kind, latest, dep) + escapeName(dependant)
}
