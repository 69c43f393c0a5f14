// internal/sunspec/builtin.go
package sunspec

// Built-in model definitions for the blocks most fleets expose. Anything
// else comes from the schema file (see LoadModels).

func commonFields() []Field {
	return []Field{
		{Name: "Mn", Type: TypeString, Size: 16},
		{Name: "Md", Type: TypeString, Size: 16},
		{Name: "Opt", Type: TypeString, Size: 8},
		{Name: "Vr", Type: TypeString, Size: 8},
		{Name: "SN", Type: TypeString, Size: 16},
		{Name: "DA", Type: TypeUint16},
		{Name: "", Type: TypePad},
	}
}

func inverterFields() []Field {
	return []Field{
		{Name: "A", Type: TypeUint16, ScaleField: "A_SF", Units: "A"},
		{Name: "AphA", Type: TypeUint16, ScaleField: "A_SF", Units: "A"},
		{Name: "AphB", Type: TypeUint16, ScaleField: "A_SF", Units: "A"},
		{Name: "AphC", Type: TypeUint16, ScaleField: "A_SF", Units: "A"},
		{Name: "A_SF", Type: TypeSunSSF},
		{Name: "PPVphAB", Type: TypeUint16, ScaleField: "V_SF", Units: "V"},
		{Name: "PPVphBC", Type: TypeUint16, ScaleField: "V_SF", Units: "V"},
		{Name: "PPVphCA", Type: TypeUint16, ScaleField: "V_SF", Units: "V"},
		{Name: "PhVphA", Type: TypeUint16, ScaleField: "V_SF", Units: "V"},
		{Name: "PhVphB", Type: TypeUint16, ScaleField: "V_SF", Units: "V"},
		{Name: "PhVphC", Type: TypeUint16, ScaleField: "V_SF", Units: "V"},
		{Name: "V_SF", Type: TypeSunSSF},
		{Name: "W", Type: TypeInt16, ScaleField: "W_SF", Units: "W"},
		{Name: "W_SF", Type: TypeSunSSF},
		{Name: "Hz", Type: TypeUint16, ScaleField: "Hz_SF", Units: "Hz"},
		{Name: "Hz_SF", Type: TypeSunSSF},
		{Name: "VA", Type: TypeInt16, ScaleField: "VA_SF", Units: "VA"},
		{Name: "VA_SF", Type: TypeSunSSF},
		{Name: "VAr", Type: TypeInt16, ScaleField: "VAr_SF", Units: "var"},
		{Name: "VAr_SF", Type: TypeSunSSF},
		{Name: "PF", Type: TypeInt16, ScaleField: "PF_SF", Units: "%"},
		{Name: "PF_SF", Type: TypeSunSSF},
		{Name: "WH", Type: TypeAcc32, ScaleField: "WH_SF", Units: "Wh"},
		{Name: "WH_SF", Type: TypeSunSSF},
		{Name: "DCA", Type: TypeUint16, ScaleField: "DCA_SF", Units: "A"},
		{Name: "DCA_SF", Type: TypeSunSSF},
		{Name: "DCV", Type: TypeUint16, ScaleField: "DCV_SF", Units: "V"},
		{Name: "DCV_SF", Type: TypeSunSSF},
		{Name: "DCW", Type: TypeInt16, ScaleField: "DCW_SF", Units: "W"},
		{Name: "DCW_SF", Type: TypeSunSSF},
		{Name: "TmpCab", Type: TypeInt16, ScaleField: "Tmp_SF", Units: "C"},
		{Name: "TmpSnk", Type: TypeInt16, ScaleField: "Tmp_SF", Units: "C"},
		{Name: "TmpTrns", Type: TypeInt16, ScaleField: "Tmp_SF", Units: "C"},
		{Name: "TmpOt", Type: TypeInt16, ScaleField: "Tmp_SF", Units: "C"},
		{Name: "Tmp_SF", Type: TypeSunSSF},
		{Name: "St", Type: TypeEnum16},
		{Name: "StVnd", Type: TypeEnum16},
		{Name: "Evt1", Type: TypeBits32},
		{Name: "Evt2", Type: TypeBits32},
		{Name: "EvtVnd1", Type: TypeBits32},
		{Name: "EvtVnd2", Type: TypeBits32},
		{Name: "EvtVnd3", Type: TypeBits32},
		{Name: "EvtVnd4", Type: TypeBits32},
	}
}

// BuiltinModels returns a fresh copy of the compiled-in model set.
func BuiltinModels() map[uint16]Model {
	return map[uint16]Model{
		1:   {ID: 1, Label: "common", Length: 66, Fields: commonFields()},
		101: {ID: 101, Label: "inverter (single phase)", Length: 50, Fields: inverterFields()},
		103: {ID: 103, Label: "inverter (three phase)", Length: 50, Fields: inverterFields()},
	}
}
