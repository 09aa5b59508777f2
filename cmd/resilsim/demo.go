package main

import (
	"github.com/dd0wney/cluso-resilsim/pkg/block"
	"github.com/dd0wney/cluso-resilsim/pkg/flow"
	"github.com/dd0wney/cluso-resilsim/pkg/model"
	"github.com/dd0wney/cluso-resilsim/pkg/phases"
	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// Built-in models runnable from the command line. Models are code, not
// configuration, so the CLI ships a small catalog; configuration selects
// what to sample from them.

func buildModel(name string, sp model.SimParams) (*model.Model, error) {
	switch name {
	case "pump":
		return newPumpModel(sp)
	default:
		return nil, simerr.Config("model", name, "not a built-in model (want pump)")
	}
}

// newPumpModel is the classic water-pump demo: import electricity and water,
// move the water, export it. One dynamic block (the pump integrates wear),
// the rest static.
func newPumpModel(sp model.SimParams) (*model.Model, error) {
	if sp.Dt == 0 {
		sp = model.SimParams{Start: 0, End: 55, Dt: 1, Units: "hr"}
	}
	if sp.Phases == nil {
		pm, err := phases.New(
			phases.Phase{Name: "start", Start: 0, End: 4},
			phases.Phase{Name: "on", Start: 5, End: 49},
			phases.Phase{Name: "end", Start: 50, End: 55},
		)
		if err != nil {
			return nil, err
		}
		sp.Phases = pm
	}
	mdl := model.New("pump", sp)

	flows := []*flow.Flow{
		flow.MustNew("ee_1", flow.Num("current", 1.0), flow.Num("voltage", 1.0)),
		flow.MustNew("sig_1", flow.Num("power", 1.0)),
		flow.MustNew("wat_1", flow.Num("flowrate", 1.0), flow.Num("pressure", 1.0)),
		flow.MustNew("wat_2", flow.Num("flowrate", 1.0), flow.Num("pressure", 1.0)),
	}
	for _, fl := range flows {
		if err := mdl.AddFlow(fl); err != nil {
			return nil, err
		}
	}

	importEE := block.MustNew(block.Spec{
		Name:  "import_ee",
		Class: "ImportEE",
		Modes: []block.FaultMode{
			{Name: "no_v", Rate: 1e-5, Units: "hr", RepairCost: 10000},
			{Name: "inf_v", Rate: 5e-6, Units: "hr", RepairCost: 15000},
		},
		Flows: []string{"ee_1"},
		CondFaults: func(b *block.Block, t float64) {
			if b.Flow("ee_1").Number("current") > 15 {
				b.Mode().Activate("no_v")
			}
		},
		Static: func(b *block.Block, t float64) {
			switch {
			case b.Mode().HasFault("no_v"):
				b.Flow("ee_1").SetNumber("voltage", 0)
			case b.Mode().HasFault("inf_v"):
				b.Flow("ee_1").SetNumber("voltage", 100)
			default:
				b.Flow("ee_1").SetNumber("voltage", 1)
			}
		},
	})

	importSig := block.MustNew(block.Spec{
		Name:  "import_sig",
		Class: "ImportSig",
		Modes: []block.FaultMode{
			{Name: "no_sig", Rate: 1e-6, Units: "hr", RepairCost: 10000},
		},
		Flows: []string{"sig_1"},
		Static: func(b *block.Block, t float64) {
			if b.Mode().HasFault("no_sig") {
				b.Flow("sig_1").SetNumber("power", 0)
				return
			}
			// The pump runs during the on phase only.
			if t >= 5 && t < 50 {
				b.Flow("sig_1").SetNumber("power", 1)
			} else {
				b.Flow("sig_1").SetNumber("power", 0)
			}
		},
	})

	importWat := block.MustNew(block.Spec{
		Name:  "import_wat",
		Class: "ImportWater",
		Modes: []block.FaultMode{
			{Name: "no_wat", Rate: 1e-6, Units: "hr", RepairCost: 1000},
		},
		Flows: []string{"wat_1"},
		Static: func(b *block.Block, t float64) {
			if b.Mode().HasFault("no_wat") {
				b.Flow("wat_1").SetNumber("pressure", 0)
			} else {
				b.Flow("wat_1").SetNumber("pressure", 1)
			}
		},
	})

	moveWat := block.MustNew(block.Spec{
		Name:  "move_wat",
		Class: "MoveWater",
		State: []block.Var{{Name: "eff", Init: 1.0}, {Name: "wear", Init: 0.0}},
		Modes: []block.FaultMode{
			{Name: "mech_break", Rate: 5e-6, Units: "hr", RepairCost: 5000,
				Opportunity: map[string]float64{"start": 0.1, "on": 0.7, "end": 0.2}},
			{Name: "short", Rate: 1e-6, Units: "hr", RepairCost: 10000},
		},
		Flows: []string{"ee_1", "sig_1", "wat_1", "wat_2"},
		CondFaults: func(b *block.Block, t float64) {
			if b.State().Num("wear") > 10 {
				b.Mode().Activate("mech_break")
			}
		},
		Static: func(b *block.Block, t float64) {
			s := b.State()
			switch {
			case b.Mode().HasFault("short"):
				s.SetNum("eff", 0)
				b.Flow("ee_1").SetNumber("current", 500 * b.Flow("ee_1").Number("voltage"))
			case b.Mode().HasFault("mech_break"):
				s.SetNum("eff", 0)
				b.Flow("ee_1").SetNumber("current", 0.2 * b.Flow("ee_1").Number("voltage"))
			default:
				s.SetNum("eff", 1)
				b.Flow("ee_1").SetNumber("current", b.Flow("sig_1").Number("power"))
			}
			out := s.Num("eff") *
				b.Flow("sig_1").Number("power") *
				b.Flow("ee_1").Number("voltage") *
				b.Flow("wat_1").Number("pressure")
			b.Flow("wat_2").SetNumber("pressure", out)
			b.Flow("wat_2").SetNumber("flowrate", out)
			b.Flow("wat_1").SetNumber("flowrate", out)
		},
		Dynamic: func(b *block.Block, t float64) {
			// Wear accumulates while pumping.
			if b.Flow("sig_1").Number("power") > 0 {
				b.State().Inc("wear", 0.1)
			}
		},
	})

	exportWat := block.MustNew(block.Spec{
		Name:  "export_wat",
		Class: "ExportWater",
		Modes: []block.FaultMode{
			{Name: "block", Rate: 1e-6, Units: "hr", RepairCost: 5000},
		},
		Flows: []string{"wat_2"},
		Static: func(b *block.Block, t float64) {
			if b.Mode().HasFault("block") {
				b.Flow("wat_2").SetNumber("flowrate", 0)
			}
		},
	})

	for _, b := range []*block.Block{importEE, importSig, importWat, moveWat, exportWat} {
		if err := mdl.AddBlock(b); err != nil {
			return nil, err
		}
	}
	if err := mdl.Build(); err != nil {
		return nil, err
	}
	return mdl, nil
}
