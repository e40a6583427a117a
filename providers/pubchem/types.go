package pubchem

// CIDResponse is returned by /compound/name/{name}/cids/JSON.
type CIDResponse struct {
	IdentifierList struct {
		CID []int64 `json:"CID"`
	} `json:"IdentifierList"`
}

// PropertyResponse is returned by /compound/cid/{cids}/property/.../JSON.
type PropertyResponse struct {
	PropertyTable struct {
		Properties []Property `json:"Properties"`
	} `json:"PropertyTable"`
}

// Property holds one compound row. Newer PUG REST releases report SMILES and
// ConnectivitySMILES in place of IsomericSMILES and CanonicalSMILES.
type Property struct {
	CID                int64  `json:"CID"`
	Title              string `json:"Title"`
	CanonicalSMILES    string `json:"CanonicalSMILES"`
	IsomericSMILES     string `json:"IsomericSMILES"`
	SMILES             string `json:"SMILES"`
	ConnectivitySMILES string `json:"ConnectivitySMILES"`
	InChIKey           string `json:"InChIKey"`
}
