package model

// BankExport is the top-level JSON structure for bank export.
type BankExport struct {
	Bank      Bank       `json:"bank"`
	Columns   []string   `json:"columns"`
	Questions []Question `json:"questions"`
}
