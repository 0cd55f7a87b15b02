package transponder

import (
	"fmt"
	"slices"
)

// stateOnlyLeaves are reported by hardware and never operator-assignable.
var stateOnlyLeaves = map[string]bool{
	LeafOperStatus: true,
	LeafAlarmInfo:  true,
}

// WritableConfigLeaf reports whether operators may assign or unset leaf.
func WritableConfigLeaf(leaf string) bool {
	return !stateOnlyLeaves[leaf]
}

// ValidateConfigLeaf checks one config leaf assignment against the model:
// state-only leaves are never writable, and the enumerated leaves only
// accept their family's values. Leaves outside the model pass; the leaf
// set is open-ended and drivers accept vendor extensions.
func ValidateConfigLeaf(kind EntityKind, leaf, value string) error {
	if !WritableConfigLeaf(leaf) {
		return fmt.Errorf("transponder: %s is state-only", leaf)
	}
	allowed, restricted := enumValues(kind, leaf)
	if !restricted {
		return nil
	}
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("transponder: invalid %s %q for %s", leaf, value, kind)
	}
	return nil
}

// LeafDefault returns the model default for a config leaf, if one is
// defined. Unsetting such a leaf reverts it to this value rather than
// removing it from hardware.
func LeafDefault(kind EntityKind, leaf string) (string, bool) {
	switch leaf {
	case LeafAdminStatus:
		return string(AdminDown), true
	case LeafLoopbackType:
		if kind != KindModule {
			return string(LoopbackNone), true
		}
	case LeafEnableNotify:
		return "false", true
	case LeafEnableAlarmNotification:
		if kind != KindModule {
			return "true", true
		}
	}
	return "", false
}

// enumValues returns the values leaf accepts on the given entity family.
// restricted is false for free-form leaves; a restricted leaf with no
// values does not exist on that family at all.
func enumValues(kind EntityKind, leaf string) (allowed []string, restricted bool) {
	switch leaf {
	case LeafAdminStatus:
		return []string{string(AdminUp), string(AdminDown)}, true
	case LeafEnableNotify:
		return []string{"true", "false"}, true
	case LeafEnableAlarmNotification:
		if kind == KindModule {
			return nil, true
		}
		return []string{"true", "false"}, true
	case LeafLoopbackType:
		if kind == KindModule {
			return nil, true
		}
		return []string{
			string(LoopbackNone),
			string(LoopbackShallow),
			string(LoopbackDeep),
		}, true
	case LeafFECType:
		// Modules carry fec-type as the module-wide host-side setting, so
		// they share the host enumeration.
		if kind == KindNetworkInterface {
			return []string{
				string(NetFECSC),
				string(NetFECC),
				string(NetFECO),
				string(NetFECHG),
			}, true
		}
		return []string{
			string(HostFECRS),
			string(HostFECFC),
			string(HostFECGFEC),
		}, true
	case LeafModulationFormat:
		if kind != KindNetworkInterface {
			return nil, true
		}
		return []string{
			string(ModBPSK), string(ModDPBPSK),
			string(ModQPSK), string(ModDPQPSK),
			string(Mod8QAM), string(ModDP8QAM),
			string(Mod16QAM), string(ModDP16QAM),
			string(Mod32QAM), string(ModDP32QAM),
			string(Mod64QAM), string(ModDP64QAM),
		}, true
	case LeafSignalRate:
		if kind != KindHostInterface {
			return nil, true
		}
		return []string{
			string(Rate100GbE),
			string(Rate200GbE),
			string(Rate400GbE),
			string(RateOTU4),
		}, true
	}
	return nil, false
}
