package transponder

// AdminStatus is the operator-desired administrative state.
type AdminStatus string

// admin-status values.
const (
	AdminUp   AdminStatus = "up"
	AdminDown AdminStatus = "down"
)

// ModuleOperStatus is the observed operational state of a module.
type ModuleOperStatus string

// Module oper-status values.
const (
	ModuleOperUnknown    ModuleOperStatus = "unknown"
	ModuleOperInitialize ModuleOperStatus = "initialize"
	ModuleOperReady      ModuleOperStatus = "ready"
)

// NetworkOperStatus is the observed operational state of a network
// interface. The values form a bring-up sequence; "fault" is an absorbing
// error state and "reset" re-enters the sequence from the top.
type NetworkOperStatus string

// Network interface oper-status values, in bring-up order.
const (
	NetOperUnknown       NetworkOperStatus = "unknown"
	NetOperReset         NetworkOperStatus = "reset"
	NetOperInitialize    NetworkOperStatus = "initialize"
	NetOperLowPower      NetworkOperStatus = "low-power"
	NetOperHighPowerUp   NetworkOperStatus = "high-power-up"
	NetOperTxOff         NetworkOperStatus = "tx-off"
	NetOperTxTurnOn      NetworkOperStatus = "tx-turn-on"
	NetOperReady         NetworkOperStatus = "ready"
	NetOperTxTurnOff     NetworkOperStatus = "tx-turn-off"
	NetOperHighPowerDown NetworkOperStatus = "high-power-down"
	NetOperFault         NetworkOperStatus = "fault"
)

// HostFECType is the FEC used on the client side of a host interface.
// Distinct from NetworkFECType: the two enumerations overlap in purpose
// but not in values, and are intentionally separate types.
type HostFECType string

// Host interface fec-type values.
const (
	HostFECRS   HostFECType = "rs"
	HostFECFC   HostFECType = "fc"
	HostFECGFEC HostFECType = "gfec"
)

// NetworkFECType is the FEC used on the line side of a network interface.
type NetworkFECType string

// Network interface fec-type values.
const (
	NetFECSC NetworkFECType = "sc-fec"
	NetFECC  NetworkFECType = "cfec"
	NetFECO  NetworkFECType = "ofec"
	NetFECHG NetworkFECType = "hg-fec"
)

// LoopbackType selects a diagnostic loopback mode on an interface.
type LoopbackType string

// loopback-type values.
const (
	LoopbackNone    LoopbackType = "none"
	LoopbackShallow LoopbackType = "shallow"
	LoopbackDeep    LoopbackType = "deep"
)

// ModulationFormat is the line-side modulation of a network interface.
type ModulationFormat string

// modulation-format values.
const (
	ModBPSK    ModulationFormat = "bpsk"
	ModDPBPSK  ModulationFormat = "dp-bpsk"
	ModQPSK    ModulationFormat = "qpsk"
	ModDPQPSK  ModulationFormat = "dp-qpsk"
	Mod8QAM    ModulationFormat = "8-qam"
	ModDP8QAM  ModulationFormat = "dp-8-qam"
	Mod16QAM   ModulationFormat = "16-qam"
	ModDP16QAM ModulationFormat = "dp-16-qam"
	Mod32QAM   ModulationFormat = "32-qam"
	ModDP32QAM ModulationFormat = "dp-32-qam"
	Mod64QAM   ModulationFormat = "64-qam"
	ModDP64QAM ModulationFormat = "dp-64-qam"
)

// SignalRate is the client signal rate of a host interface.
type SignalRate string

// signal-rate values.
const (
	Rate100GbE SignalRate = "100-gbe"
	Rate200GbE SignalRate = "200-gbe"
	Rate400GbE SignalRate = "400-gbe"
	RateOTU4   SignalRate = "otu4"
)

// Leaf names referenced by the core. The full leaf set is open-ended
// (drivers may report vendor leaves); these are the ones the reconciler
// itself inspects or gates on.
const (
	LeafAdminStatus             = "admin-status"
	LeafOperStatus              = "oper-status"
	LeafEnableNotify            = "enable-notify"
	LeafEnableAlarmNotification = "enable-alarm-notification"
	LeafAlarmInfo               = "alarm-info"
	LeafLoopbackType            = "loopback-type"
	LeafFECType                 = "fec-type"
	LeafModulationFormat        = "modulation-format"
	LeafSignalRate              = "signal-rate"
)
