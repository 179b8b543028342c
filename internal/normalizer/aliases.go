package normalizer

import "github.com/Pedro-99/taqa-backend/internal/domain"

// Field is a canonical anomaly attribute that raw records are reconciled onto.
type Field string

const (
	FieldEquipmentNumber      Field = "equipment_number"
	FieldTitle                Field = "title"
	FieldDescription          Field = "description"
	FieldDetectionDate        Field = "detection_date"
	FieldStatus               Field = "status"
	FieldPriority             Field = "priority"
	FieldEquipmentDescription Field = "equipment_description"
	FieldResponsibleSection   Field = "responsible_section"
)

// Fields lists every canonical field in reconciliation order.
var Fields = []Field{
	FieldEquipmentNumber,
	FieldTitle,
	FieldDescription,
	FieldDetectionDate,
	FieldStatus,
	FieldPriority,
	FieldEquipmentDescription,
	FieldResponsibleSection,
}

// fieldAliases holds, per canonical field and source, the raw field names in
// the order they are tried. The first non-empty match wins.
var fieldAliases = map[Field]map[domain.OriginSystem][]string{
	FieldEquipmentNumber: {
		domain.OriginOracle: {"Num_equipement", "num_equipement"},
		domain.OriginExcel:  {"Equipment Number", "Num_equipement", "Numéro équipement", "equipment_number"},
		domain.OriginManual: {"equipment_number"},
	},
	FieldTitle: {
		domain.OriginOracle: {"Description", "description"},
		domain.OriginExcel:  {"Title", "Description", "Titre", "title"},
		domain.OriginManual: {"title"},
	},
	FieldDescription: {
		domain.OriginOracle: {"Description", "description"},
		domain.OriginExcel:  {"Description", "Title", "description"},
		domain.OriginManual: {"description", "title"},
	},
	FieldDetectionDate: {
		domain.OriginOracle: {"Date de detection de l'anomalie", "Date_de_detection_de_l_anomalie", "detection_date"},
		domain.OriginExcel:  {"Detection Date", "Date", "Date de détection", "detection_date"},
		domain.OriginManual: {"detection_date"},
	},
	FieldStatus: {
		domain.OriginOracle: {"Statut", "statut"},
		domain.OriginExcel:  {"Status", "Statut", "status"},
		domain.OriginManual: {"status"},
	},
	FieldPriority: {
		domain.OriginOracle: {"Priorité", "priority"},
		domain.OriginExcel:  {"Priority", "Priorité", "priority"},
		domain.OriginManual: {"priority"},
	},
	FieldEquipmentDescription: {
		domain.OriginOracle: {"Description equipement", "Description_equipement", "equipment_description"},
		domain.OriginExcel:  {"Equipment Description", "Description equipement", "equipment_description"},
		domain.OriginManual: {"equipment_description"},
	},
	FieldResponsibleSection: {
		domain.OriginOracle: {"Section proprietaire", "Section_proprietaire", "responsible_section"},
		domain.OriginExcel:  {"Section", "Section proprietaire", "Section responsable", "responsible_section"},
		domain.OriginManual: {"responsible_section"},
	},
}

// Aliases returns the raw field names tried for field when reading source.
func Aliases(field Field, source domain.OriginSystem) []string {
	aliases := fieldAliases[field][source]
	out := make([]string, len(aliases))
	copy(out, aliases)
	return out
}

// HasRecognizedFields reports whether any of keys names the equipment number,
// the title or the description for source. Used to warn about sheets whose
// header row matches nothing.
func HasRecognizedFields(source domain.OriginSystem, keys []string) bool {
	folded := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		folded[foldKey(k)] = struct{}{}
	}
	for _, field := range []Field{FieldEquipmentNumber, FieldTitle, FieldDescription} {
		for _, alias := range fieldAliases[field][source] {
			if _, ok := folded[foldKey(alias)]; ok {
				return true
			}
		}
	}
	return false
}
