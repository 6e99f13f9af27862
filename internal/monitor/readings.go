package monitor

import (
	"math"

	"github.com/marmos91/rctmon/internal/protocol/rct"
	"github.com/marmos91/rctmon/internal/registry"
)

// Reading binds an inverter object to the field name it is exported under.
type Reading struct {
	OidName string
	Field   string
}

// ShortIntervalReadings are polled every short interval: the instantaneous
// power distribution of the installation.
var ShortIntervalReadings = []Reading{
	{"dc_conv.dc_conv_struct[0].p_dc", "power_panel_0"},
	{"dc_conv.dc_conv_struct[1].p_dc", "power_panel_1"},
	{"g_sync.p_ac_load_sum_lp", "power_used"},
	{"g_sync.p_ac_grid_sum_lp", "power_grid"},
	{"g_sync.p_ac_load[0]", "power_phase_0"},
	{"g_sync.p_ac_load[1]", "power_phase_1"},
	{"g_sync.p_ac_load[2]", "power_phase_2"},
	{"g_sync.p_acc_lp", "power_battery"},
	{"grid_pll[0].f", "grid_frequency"},
}

// LongIntervalReadings are polled every long interval: battery state and the
// day/total energy counters, which move slowly.
var LongIntervalReadings = []Reading{
	{"battery.soc", "charge_battery"},
	{"battery.soc_target", "charge_battery_target"},
	{"power_mng.amp_hours", "battery_amp_hours"},
	{"battery.voltage", "battery_voltage"},
	{"battery.used_energy", "battery_used_energy"},
	{"battery.stored_energy", "battery_stored_energy"},
	{"prim_sm.island_flag", "grid_separated"},
	{"energy.e_ac_day", "day_energy"},
	{"energy.e_load_day", "day_energy_used"},
	{"energy.e_ac_total", "total_energy"},
	{"energy.e_grid_feed_day_sum", "day_energy_grid_feed"},
	{"energy.e_grid_load_day", "day_energy_grid_load"},
	{"energy.e_dc_day[0]", "day_energy_panel_0"},
	{"energy.e_dc_day[1]", "day_energy_panel_1"},
}

func oidNames(readings []Reading) []string {
	names := make([]string, len(readings))
	for i, r := range readings {
		names[i] = r.OidName
	}
	return names
}

// units returns the physical unit per OID name for the log summaries.
func units(reg *registry.Registry, readings []Reading) map[string]string {
	out := make(map[string]string, len(readings))
	for _, r := range readings {
		if oi, err := reg.GetByName(r.OidName); err == nil {
			out[r.OidName] = oi.Unit
		}
	}
	return out
}

// decodeReading converts a payload into a sink-friendly value: float32
// becomes a float64 rounded to one decimal, small integers widen to int64.
func decodeReading(oi registry.ObjectInfo, payload []byte) (any, error) {
	value, err := rct.DecodeValue(oi.ResponseDataType, payload)
	if err != nil {
		return nil, err
	}
	switch v := value.(type) {
	case float32:
		return math.Round(float64(v)*10) / 10, nil
	case uint8:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case int32:
		return int64(v), nil
	default:
		return v, nil
	}
}

// numeric converts a decoded reading to float64 for the prometheus gauge.
func numeric(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
