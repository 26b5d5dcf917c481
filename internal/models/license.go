package models

// License is the closed set of licenses the catalog recognises.
type License string

const (
	LicenseNone      License = "none"
	LicenseOther     License = "other"
	LicenseMIT       License = "mit"
	LicenseApache2   License = "apache-2.0"
	LicenseBSD2      License = "bsd-2-clause"
	LicenseBSD3      License = "bsd-3-clause"
	LicenseISC       License = "isc"
	LicenseMPL2      License = "mpl-2.0"
	LicenseUnlicense License = "unlicense"
	LicenseCC0       License = "cc0-1.0"
	LicenseGPL2      License = "gpl-2.0"
	LicenseGPL3      License = "gpl-3.0"
	LicenseLGPL21    License = "lgpl-2.1"
	LicenseLGPL3     License = "lgpl-3.0"
	LicenseAGPL3     License = "agpl-3.0"
)

// LicenseKind classifies a license for distribution purposes
type LicenseKind string

const (
	LicenseKindNone                     LicenseKind = "none"
	LicenseKindOther                    LicenseKind = "other"
	LicenseKindCompatibleWithAppStore   LicenseKind = "compatibleWithAppStore"
	LicenseKindIncompatibleWithAppStore LicenseKind = "incompatibleWithAppStore"
)

// Kind classifies l. Unknown values are treated as other.
func (l License) Kind() LicenseKind {
	switch l {
	case LicenseNone, "":
		return LicenseKindNone
	case LicenseMIT, LicenseApache2, LicenseBSD2, LicenseBSD3, LicenseISC,
		LicenseMPL2, LicenseUnlicense, LicenseCC0:
		return LicenseKindCompatibleWithAppStore
	case LicenseGPL2, LicenseGPL3, LicenseLGPL21, LicenseLGPL3, LicenseAGPL3:
		return LicenseKindIncompatibleWithAppStore
	default:
		return LicenseKindOther
	}
}

// ShortName is the display name used in generated documents.
func (l License) ShortName() string {
	switch l {
	case LicenseNone, "":
		return "None"
	case LicenseMIT:
		return "MIT"
	case LicenseApache2:
		return "Apache 2.0"
	case LicenseBSD2:
		return "BSD 2-Clause"
	case LicenseBSD3:
		return "BSD 3-Clause"
	case LicenseISC:
		return "ISC"
	case LicenseMPL2:
		return "MPL 2.0"
	case LicenseUnlicense:
		return "Unlicense"
	case LicenseCC0:
		return "CC0 1.0"
	case LicenseGPL2:
		return "GPL 2.0"
	case LicenseGPL3:
		return "GPL 3.0"
	case LicenseLGPL21:
		return "LGPL 2.1"
	case LicenseLGPL3:
		return "LGPL 3.0"
	case LicenseAGPL3:
		return "AGPL 3.0"
	default:
		return "Other"
	}
}
