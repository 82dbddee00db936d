package pipeline

import "github.com/IshaanNene/driverscout/internal/types"

// Schema maps each canonical driver field to the source-specific keys that
// may carry it. Alias order is the tie-break when several are present.
type Schema struct {
	Name    string
	Aliases map[string][]string
}

// HasName reports whether any name alias of s is set on rec.
func (s Schema) HasName(rec *types.RawRecord) bool {
	for _, alias := range s.Aliases[types.FieldName] {
		if rec.Has(alias) {
			return true
		}
	}
	return false
}

// MarkupSchema is used for records produced by the extractor, whose keys
// are already canonical.
var MarkupSchema = identitySchema("markup")

// APISchema covers the driver-list JSON payloads served by the support site
// and the lower-case variants seen on mirror endpoints.
var APISchema = Schema{
	Name: "api",
	Aliases: map[string][]string{
		types.FieldName:        {"DriverName", "Name", "name", "title"},
		types.FieldCategory:    {"Category", "CatName", "category"},
		types.FieldVersion:     {"DellVer", "Version", "version"},
		types.FieldReleaseDate: {"ReleaseDate", "LUPDDate", "releaseDate", "date"},
		types.FieldImportance:  {"Imp", "Importance", "importance"},
		types.FieldDescription: {"BriefDescription", "Description", "description"},
		types.FieldDownloadURL: {"FileFrmtInfo.HttpFileLocation", "DownloadUrl", "downloadUrl", "url", "href"},
	},
}

// SoftwareSchema maps schema.org SoftwareApplication entries embedded as JSON-LD.
var SoftwareSchema = Schema{
	Name: "jsonld",
	Aliases: map[string][]string{
		types.FieldName:        {"name"},
		types.FieldCategory:    {"applicationCategory", "applicationSubCategory"},
		types.FieldVersion:     {"softwareVersion", "version"},
		types.FieldReleaseDate: {"datePublished", "dateModified"},
		types.FieldDescription: {"description"},
		types.FieldDownloadURL: {"downloadUrl", "installUrl", "url"},
	},
}

func identitySchema(name string) Schema {
	aliases := make(map[string][]string, len(types.DriverFields))
	for _, f := range types.DriverFields {
		aliases[f] = []string{f}
	}
	return Schema{Name: name, Aliases: aliases}
}
