package models

// LinkerReference is an entry of the internal linker library used by the chemistry resolver.
type LinkerReference struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Name      string `json:"name" gorm:"uniqueIndex;not null"` // e.g. "mc-vc-PABC"
	Family    string `json:"family" gorm:"index"`
	SMILES    string `json:"smiles" gorm:"column:smiles;type:text"`
	Cleavable bool   `json:"cleavable"`
}

func (LinkerReference) TableName() string { return "golden_linker_library" }
