package registry

import "github.com/marmos91/rctmon/internal/protocol/rct"

// objects is the table of known inverter variables. The device exposes a few
// thousand OIDs; this table carries the telemetry the monitoring loops poll
// plus the common battery, grid and energy counters. IDs and payload types
// follow the vendor's object dictionary.
var objects = []ObjectInfo{
	// Battery
	{ObjectID: 0x959930BF, Name: "battery.soc", ResponseDataType: rct.DataTypeFloat, Unit: "", Description: "Battery state of charge (0..1)"},
	{ObjectID: 0x8B9FF008, Name: "battery.soc_target", ResponseDataType: rct.DataTypeFloat, Unit: "", Description: "Battery SoC target"},
	{ObjectID: 0xA7FA5C5D, Name: "battery.voltage", ResponseDataType: rct.DataTypeFloat, Unit: "V", Description: "Battery voltage"},
	{ObjectID: 0x902AFAFB, Name: "battery.temperature", ResponseDataType: rct.DataTypeFloat, Unit: "degC", Description: "Battery temperature"},
	{ObjectID: 0x5570401B, Name: "battery.stored_energy", ResponseDataType: rct.DataTypeFloat, Unit: "Wh", Description: "Total energy stored into the battery"},
	{ObjectID: 0xA9033880, Name: "battery.used_energy", ResponseDataType: rct.DataTypeFloat, Unit: "Wh", Description: "Total energy drawn from the battery"},
	{ObjectID: 0x6388556C, Name: "battery.bms_software_version", ResponseDataType: rct.DataTypeUint32, Unit: "", Description: "BMS firmware version"},
	{ObjectID: 0x16A1F844, Name: "battery.bms_sn", ResponseDataType: rct.DataTypeString, Unit: "", Description: "BMS serial number"},

	// Grid synchronisation unit
	{ObjectID: 0x400F015B, Name: "g_sync.p_acc_lp", ResponseDataType: rct.DataTypeFloat, Unit: "W", Description: "Battery power, negative while discharging"},
	{ObjectID: 0xDB2D69AE, Name: "g_sync.p_ac_load_sum_lp", ResponseDataType: rct.DataTypeFloat, Unit: "W", Description: "Household load, all phases"},
	{ObjectID: 0x91617C58, Name: "g_sync.p_ac_grid_sum_lp", ResponseDataType: rct.DataTypeFloat, Unit: "W", Description: "Total grid power"},
	{ObjectID: 0x3A39CA2E, Name: "g_sync.p_ac_load[0]", ResponseDataType: rct.DataTypeFloat, Unit: "W", Description: "Household load phase 1"},
	{ObjectID: 0x2788928C, Name: "g_sync.p_ac_load[1]", ResponseDataType: rct.DataTypeFloat, Unit: "W", Description: "Household load phase 2"},
	{ObjectID: 0xF0B436DD, Name: "g_sync.p_ac_load[2]", ResponseDataType: rct.DataTypeFloat, Unit: "W", Description: "Household load phase 3"},
	{ObjectID: 0xE94C2EFC, Name: "g_sync.u_l_rms[0]", ResponseDataType: rct.DataTypeFloat, Unit: "V", Description: "Grid voltage phase 1"},
	{ObjectID: 0x7A9091EA, Name: "g_sync.u_l_rms[1]", ResponseDataType: rct.DataTypeFloat, Unit: "V", Description: "Grid voltage phase 2"},
	{ObjectID: 0x659CA1EB, Name: "g_sync.u_l_rms[2]", ResponseDataType: rct.DataTypeFloat, Unit: "V", Description: "Grid voltage phase 3"},
	{ObjectID: 0x4077335A, Name: "grid_pll[0].f", ResponseDataType: rct.DataTypeFloat, Unit: "Hz", Description: "Grid frequency"},

	// Solar strings
	{ObjectID: 0xDB11855B, Name: "dc_conv.dc_conv_struct[0].p_dc", ResponseDataType: rct.DataTypeFloat, Unit: "W", Description: "Solar generator A power"},
	{ObjectID: 0x0CB5D21B, Name: "dc_conv.dc_conv_struct[1].p_dc", ResponseDataType: rct.DataTypeFloat, Unit: "W", Description: "Solar generator B power"},
	{ObjectID: 0xB5317B78, Name: "dc_conv.dc_conv_struct[0].p_dc_lp", ResponseDataType: rct.DataTypeFloat, Unit: "W", Description: "Solar generator A power, filtered"},
	{ObjectID: 0xAA9AA253, Name: "dc_conv.dc_conv_struct[1].p_dc_lp", ResponseDataType: rct.DataTypeFloat, Unit: "W", Description: "Solar generator B power, filtered"},
	{ObjectID: 0xB298395D, Name: "dc_conv.dc_conv_struct[0].u_sg_lp", ResponseDataType: rct.DataTypeFloat, Unit: "V", Description: "Solar generator A voltage"},
	{ObjectID: 0x5BB8075A, Name: "dc_conv.dc_conv_struct[1].u_sg_lp", ResponseDataType: rct.DataTypeFloat, Unit: "V", Description: "Solar generator B voltage"},

	// Energy counters
	{ObjectID: 0xB1EF67CE, Name: "energy.e_ac_total", ResponseDataType: rct.DataTypeFloat, Unit: "Wh", Description: "Total energy produced"},
	{ObjectID: 0xFC724A9E, Name: "energy.e_ac_day", ResponseDataType: rct.DataTypeFloat, Unit: "Wh", Description: "Energy produced today"},
	{ObjectID: 0xEFF4B537, Name: "energy.e_load_day", ResponseDataType: rct.DataTypeFloat, Unit: "Wh", Description: "Household energy today"},
	{ObjectID: 0x26EFFC2F, Name: "energy.e_load_total", ResponseDataType: rct.DataTypeFloat, Unit: "Wh", Description: "Household energy total"},
	{ObjectID: 0x44D4C533, Name: "energy.e_grid_feed_day_sum", ResponseDataType: rct.DataTypeFloat, Unit: "Wh", Description: "Energy fed into the grid today"},
	{ObjectID: 0x2F3C1D7D, Name: "energy.e_grid_feed_total", ResponseDataType: rct.DataTypeFloat, Unit: "Wh", Description: "Energy fed into the grid total"},
	{ObjectID: 0x86A15C08, Name: "energy.e_grid_load_day", ResponseDataType: rct.DataTypeFloat, Unit: "Wh", Description: "Energy drawn from the grid today"},
	{ObjectID: 0x66F6A7A9, Name: "energy.e_grid_load_total", ResponseDataType: rct.DataTypeFloat, Unit: "Wh", Description: "Energy drawn from the grid total"},
	{ObjectID: 0x97E7332D, Name: "energy.e_dc_day[0]", ResponseDataType: rct.DataTypeFloat, Unit: "Wh", Description: "Solar generator A energy today"},
	{ObjectID: 0x55D2D604, Name: "energy.e_dc_day[1]", ResponseDataType: rct.DataTypeFloat, Unit: "Wh", Description: "Solar generator B energy today"},
	{ObjectID: 0xA59C8428, Name: "energy.e_ext_total", ResponseDataType: rct.DataTypeFloat, Unit: "Wh", Description: "External generator energy total"},

	// Power management
	{ObjectID: 0x1156DFD0, Name: "power_mng.amp_hours", ResponseDataType: rct.DataTypeFloat, Unit: "Ah", Description: "Battery charge throughput"},
	{ObjectID: 0xF168B748, Name: "power_mng.soc_strategy", ResponseDataType: rct.DataTypeEnum, Unit: "", Description: "SoC management strategy"},
	{ObjectID: 0x6599E3D3, Name: "power_mng.battery_type", ResponseDataType: rct.DataTypeEnum, Unit: "", Description: "Battery chemistry"},

	// Primary state machine and faults
	{ObjectID: 0x7163D9D0, Name: "prim_sm.island_flag", ResponseDataType: rct.DataTypeBool, Unit: "", Description: "Inverter separated from the grid"},
	{ObjectID: 0x37F9D5CA, Name: "fault[0].flt", ResponseDataType: rct.DataTypeUint32, Unit: "", Description: "Fault word 0"},
	{ObjectID: 0x234B4736, Name: "fault[1].flt", ResponseDataType: rct.DataTypeUint32, Unit: "", Description: "Fault word 1"},
	{ObjectID: 0x3B7D4F4F, Name: "fault[2].flt", ResponseDataType: rct.DataTypeUint32, Unit: "", Description: "Fault word 2"},
	{ObjectID: 0x74EB23F9, Name: "fault[3].flt", ResponseDataType: rct.DataTypeUint32, Unit: "", Description: "Fault word 3"},

	// Device identity and I/O board
	{ObjectID: 0x7924ABD9, Name: "inverter_sn", ResponseDataType: rct.DataTypeString, Unit: "", Description: "Inverter serial number"},
	{ObjectID: 0xDDD1C2D0, Name: "svnversion", ResponseDataType: rct.DataTypeString, Unit: "", Description: "Firmware revision"},
	{ObjectID: 0xE4DC040A, Name: "io_board.s0_external_power", ResponseDataType: rct.DataTypeFloat, Unit: "W", Description: "External power meter via S0 input"},
	{ObjectID: 0x68BC034D, Name: "parameter_file", ResponseDataType: rct.DataTypeString, Unit: "", Description: "Active parameter file name"},
	{ObjectID: 0x8FC89B10, Name: "net.slave_data", ResponseDataType: rct.DataTypeUnknown, Unit: "", Description: "Raw plant slave data block"},
}
