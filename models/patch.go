package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SeedField names a curated SeedItem attribute that proposals may change.
type SeedField string

const (
	FieldDrugName                  SeedField = "drug_name"
	FieldResolvedTargetSymbol      SeedField = "resolved_target_symbol"
	FieldAntibodyName              SeedField = "antibody_name"
	FieldAntibodyCanonicalName     SeedField = "antibody_canonical_name"
	FieldAntibodyFormat            SeedField = "antibody_format"
	FieldAntibodyXrefs             SeedField = "antibody_xrefs"
	FieldLinkerName                SeedField = "linker_name"
	FieldLinkerFamily              SeedField = "linker_family"
	FieldLinkerSMILES              SeedField = "linker_smiles"
	FieldLinkerRefID               SeedField = "linker_ref_id"
	FieldPayloadFamily             SeedField = "payload_family"
	FieldPayloadExactName          SeedField = "payload_exact_name"
	FieldPayloadSMILESStandardized SeedField = "payload_smiles_standardized"
	FieldPayloadCID                SeedField = "payload_cid"
	FieldPayloadInChIKey           SeedField = "payload_inchikey"
	FieldIsProxyPayload            SeedField = "is_proxy_payload"
	FieldIsProxyLinker             SeedField = "is_proxy_linker"
	FieldIsProxyAntibody           SeedField = "is_proxy_antibody"
	FieldProxySmilesFlag           SeedField = "proxy_smiles_flag"
	FieldProxyEvidence             SeedField = "proxy_evidence"
	FieldEvidenceRefs              SeedField = "evidence_refs"

	// MetaNote carries pipeline commentary; it is never written to a seed.
	MetaNote SeedField = "_note"
)

// SeedFields lists every data field in schema order.
var SeedFields = []SeedField{
	FieldDrugName, FieldResolvedTargetSymbol,
	FieldAntibodyName, FieldAntibodyCanonicalName, FieldAntibodyFormat, FieldAntibodyXrefs,
	FieldLinkerName, FieldLinkerFamily, FieldLinkerSMILES, FieldLinkerRefID,
	FieldPayloadFamily, FieldPayloadExactName, FieldPayloadSMILESStandardized, FieldPayloadCID, FieldPayloadInChIKey,
	FieldIsProxyPayload, FieldIsProxyLinker, FieldIsProxyAntibody, FieldProxySmilesFlag, FieldProxyEvidence,
	FieldEvidenceRefs,
}

// IsMetadata reports whether the key denotes pipeline metadata rather than a data field.
func (f SeedField) IsMetadata() bool {
	return strings.HasPrefix(string(f), "_")
}

// Valid reports whether f is a known data field or a metadata key.
func (f SeedField) Valid() bool {
	if f.IsMetadata() {
		return len(f) > 1
	}
	for _, known := range SeedFields {
		if f == known {
			return true
		}
	}
	return false
}

// FieldChange is one entry of a proposal patch.
type FieldChange struct {
	Field  SeedField `json:"field"`
	Old    any       `json:"old"`
	New    any       `json:"new"`
	Source string    `json:"source"`
}

// Patch is the ordered list of changes carried by a proposal.
type Patch []FieldChange

// Fields returns the data fields touched by the patch.
func (p Patch) Fields() []SeedField {
	out := make([]SeedField, 0, len(p))
	for _, ch := range p {
		if !ch.Field.IsMetadata() {
			out = append(out, ch.Field)
		}
	}
	return out
}

// Get returns the current value of a data field.
func (s *SeedItem) Get(field SeedField) (any, error) {
	switch field {
	case FieldDrugName:
		return s.DrugName, nil
	case FieldResolvedTargetSymbol:
		return s.ResolvedTargetSymbol, nil
	case FieldAntibodyName:
		return s.AntibodyName, nil
	case FieldAntibodyCanonicalName:
		return s.AntibodyCanonicalName, nil
	case FieldAntibodyFormat:
		return s.AntibodyFormat, nil
	case FieldAntibodyXrefs:
		return s.AntibodyXrefs, nil
	case FieldLinkerName:
		return s.LinkerName, nil
	case FieldLinkerFamily:
		return s.LinkerFamily, nil
	case FieldLinkerSMILES:
		return s.LinkerSMILES, nil
	case FieldLinkerRefID:
		return s.LinkerRefID, nil
	case FieldPayloadFamily:
		return s.PayloadFamily, nil
	case FieldPayloadExactName:
		return s.PayloadExactName, nil
	case FieldPayloadSMILESStandardized:
		return s.PayloadSMILESStandardized, nil
	case FieldPayloadCID:
		return s.PayloadCID, nil
	case FieldPayloadInChIKey:
		return s.PayloadInChIKey, nil
	case FieldIsProxyPayload:
		return s.IsProxyPayload, nil
	case FieldIsProxyLinker:
		return s.IsProxyLinker, nil
	case FieldIsProxyAntibody:
		return s.IsProxyAntibody, nil
	case FieldProxySmilesFlag:
		return s.ProxySmilesFlag, nil
	case FieldProxyEvidence:
		return s.ProxyEvidence, nil
	case FieldEvidenceRefs:
		return s.EvidenceRefs, nil
	}
	return nil, fmt.Errorf("unknown seed field %q", field)
}

// Set writes a data field. Values may be native Go values or their JSON-decoded form.
func (s *SeedItem) Set(field SeedField, value any) error {
	var err error
	switch field {
	case FieldDrugName:
		s.DrugName, err = asString(value)
	case FieldResolvedTargetSymbol:
		s.ResolvedTargetSymbol, err = asString(value)
	case FieldAntibodyName:
		s.AntibodyName, err = asString(value)
	case FieldAntibodyCanonicalName:
		s.AntibodyCanonicalName, err = asString(value)
	case FieldAntibodyFormat:
		s.AntibodyFormat, err = asString(value)
	case FieldAntibodyXrefs:
		var m map[string]string
		err = remarshal(value, &m)
		s.AntibodyXrefs = m
	case FieldLinkerName:
		s.LinkerName, err = asString(value)
	case FieldLinkerFamily:
		s.LinkerFamily, err = asString(value)
	case FieldLinkerSMILES:
		s.LinkerSMILES, err = asString(value)
	case FieldLinkerRefID:
		s.LinkerRefID, err = asString(value)
	case FieldPayloadFamily:
		s.PayloadFamily, err = asString(value)
	case FieldPayloadExactName:
		s.PayloadExactName, err = asString(value)
	case FieldPayloadSMILESStandardized:
		s.PayloadSMILESStandardized, err = asString(value)
	case FieldPayloadCID:
		s.PayloadCID, err = asString(value)
	case FieldPayloadInChIKey:
		s.PayloadInChIKey, err = asString(value)
	case FieldIsProxyPayload:
		s.IsProxyPayload, err = asBool(value)
	case FieldIsProxyLinker:
		s.IsProxyLinker, err = asBool(value)
	case FieldIsProxyAntibody:
		s.IsProxyAntibody, err = asBool(value)
	case FieldProxySmilesFlag:
		s.ProxySmilesFlag, err = asBool(value)
	case FieldProxyEvidence:
		var refs []EvidenceRef
		err = remarshal(value, &refs)
		s.ProxyEvidence = refs
	case FieldEvidenceRefs:
		var refs []EvidenceRef
		err = remarshal(value, &refs)
		s.EvidenceRefs = refs
	default:
		return fmt.Errorf("unknown seed field %q", field)
	}
	if err != nil {
		return fmt.Errorf("field %s: %w", field, err)
	}
	return nil
}

func asString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	}
	return "", fmt.Errorf("expected string, got %T", v)
}

func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(t)
	}
	return false, fmt.Errorf("expected bool, got %T", v)
}

func remarshal(in any, out any) error {
	if in == nil {
		return nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
