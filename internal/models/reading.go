package models

// Reading is one formatted meter sample as forwarded to the telemetry platform
// and kept in meter_data_log.json.
type Reading struct {
	ID                  string  `json:"ID"`
	GroupID             string  `json:"groupId"`
	GroupName           string  `json:"groupName"`
	DeviceType          string  `json:"deviceType"`
	Timestamp           string  `json:"timestamp"`
	UserName            string  `json:"userName"`
	TotalPower          float64 `json:"totalPower"`
	Phase1Power         float64 `json:"phase1Power"`
	Phase2Power         float64 `json:"phase2Power"`
	Phase3Power         float64 `json:"phase3Power"`
	TotalReactivePower  float64 `json:"totalReactivePower"`
	Phase1ReactivePower float64 `json:"phase1ReactivePower"`
	Phase2ReactivePower float64 `json:"phase2ReactivePower"`
	Phase3ReactivePower float64 `json:"phase3ReactivePower"`
	TotalPowerFactor    float64 `json:"totalPowerFactor"`
	Phase1PowerFactor   float64 `json:"phase1PowerFactor"`
	Phase2PowerFactor   float64 `json:"phase2PowerFactor"`
	Phase3PowerFactor   float64 `json:"phase3PowerFactor"`
	Phase1Voltage       float64 `json:"phase1Voltage"`
	Phase2Voltage       float64 `json:"phase2Voltage"`
	Phase3Voltage       float64 `json:"phase3Voltage"`
	Frequency           float64 `json:"frequency"`
	DeliveredEnergy     float64 `json:"deliveredEnergy"`
	SuppliedEnergy      float64 `json:"suppliedEnergy"`
	ChargerName         string  `json:"chargerName"`
}
