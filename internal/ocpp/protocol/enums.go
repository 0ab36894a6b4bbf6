package protocol

// Subprotocol negotiated on the WebSocket upgrade.
const Subprotocol = "ocpp1.6"

// MessageType values as per OCPP-J.
const (
	MessageTypeCall       = 2
	MessageTypeCallResult = 3
	MessageTypeCallError  = 4
)

// Action names an OCPP operation.
type Action string

// Charger-initiated actions handled by the central system.
const (
	ActionBootNotification          Action = "BootNotification"
	ActionHeartbeat                 Action = "Heartbeat"
	ActionAuthorize                 Action = "Authorize"
	ActionStartTransaction          Action = "StartTransaction"
	ActionStopTransaction           Action = "StopTransaction"
	ActionMeterValues               Action = "MeterValues"
	ActionStatusNotification        Action = "StatusNotification"
	ActionSecurityEventNotification Action = "SecurityEventNotification"
)

// Central-system-initiated actions.
const (
	ActionRemoteStopTransaction Action = "RemoteStopTransaction"
	ActionGetConfiguration      Action = "GetConfiguration"
)

// InboundActions lists every action the central system answers, in dispatch order.
var InboundActions = []Action{
	ActionBootNotification,
	ActionHeartbeat,
	ActionAuthorize,
	ActionStartTransaction,
	ActionStopTransaction,
	ActionMeterValues,
	ActionStatusNotification,
	ActionSecurityEventNotification,
}

// ParseAction maps a wire action name onto a known inbound action.
func ParseAction(name string) (Action, bool) {
	for _, a := range InboundActions {
		if string(a) == name {
			return a, true
		}
	}
	return "", false
}

// Registration status values.
const (
	RegistrationAccepted = "Accepted"
	RegistrationPending  = "Pending"
	RegistrationRejected = "Rejected"
)

// Authorization status values for IdTagInfo.
const (
	AuthorizationAccepted = "Accepted"
	AuthorizationBlocked  = "Blocked"
	AuthorizationExpired  = "Expired"
	AuthorizationInvalid  = "Invalid"
)

// Remote command status values.
const (
	RemoteStartStopAccepted = "Accepted"
	RemoteStartStopRejected = "Rejected"
)

// ChargePointStatus values reported in StatusNotification plus the central-system-only Offline.
const (
	StatusAvailable     = "Available"
	StatusPreparing     = "Preparing"
	StatusCharging      = "Charging"
	StatusSuspendedEV   = "SuspendedEV"
	StatusSuspendedEVSE = "SuspendedEVSE"
	StatusFinishing     = "Finishing"
	StatusReserved      = "Reserved"
	StatusUnavailable   = "Unavailable"
	StatusFaulted       = "Faulted"
	StatusOffline       = "Offline"
)

// Measurands of interest in MeterValues.
const (
	MeasurandEnergyActiveImportRegister = "Energy.Active.Import.Register"
	MeasurandEnergy                     = "Energy"
	MeasurandPowerActiveImport          = "Power.Active.Import"
)

// StopTransaction reasons that count as an unsuccessful session.
var FailedStopReasons = map[string]bool{
	"Error":          true,
	"EVDisconnected": true,
	"DeAuthorized":   true,
	"EmergencyStop":  true,
}

// CALLERROR codes used by the central system.
const (
	ErrorNotImplemented          = "NotImplemented"
	ErrorNotSupported            = "NotSupported"
	ErrorInternalError           = "InternalError"
	ErrorProtocolError           = "ProtocolError"
	ErrorFormationViolation      = "FormationViolation"
	ErrorTypeConstraintViolation = "TypeConstraintViolation"
)
