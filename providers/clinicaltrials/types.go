package clinicaltrials

// SearchResponse is the /studies payload of the ClinicalTrials.gov v2 API.
type SearchResponse struct {
	Studies       []StudyRecord `json:"studies"`
	NextPageToken string        `json:"nextPageToken"`
	TotalCount    int           `json:"totalCount"`
}

type StudyRecord struct {
	ProtocolSection ProtocolSection `json:"protocolSection"`
}

type ProtocolSection struct {
	IdentificationModule struct {
		NCTID            string `json:"nctId"`
		BriefTitle       string `json:"briefTitle"`
		OfficialTitle    string `json:"officialTitle"`
		SecondaryIDInfos []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"secondaryIdInfos"`
	} `json:"identificationModule"`
	StatusModule struct {
		OverallStatus string `json:"overallStatus"`
	} `json:"statusModule"`
	DescriptionModule struct {
		BriefSummary string `json:"briefSummary"`
	} `json:"descriptionModule"`
	ConditionsModule struct {
		Conditions []string `json:"conditions"`
	} `json:"conditionsModule"`
	DesignModule struct {
		Phases []string `json:"phases"`
	} `json:"designModule"`
	ArmsInterventionsModule struct {
		Interventions []struct {
			Type        string   `json:"type"`
			Name        string   `json:"name"`
			Description string   `json:"description"`
			OtherNames  []string `json:"otherNames"`
		} `json:"interventions"`
	} `json:"armsInterventionsModule"`
}
