package sample

import (
	"strings"

	"github.com/dd0wney/cluso-resilsim/pkg/model"
	"github.com/dd0wney/cluso-resilsim/pkg/scenario"
	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// FaultDomain catalogs the (block, mode) pairs eligible for injection into
// one model. It is purely descriptive: no time information, no weights.
// Selection rules add faults incrementally; re-adding an existing pair is a
// no-op, and insertion order is preserved.
type FaultDomain struct {
	mdl    *model.Model
	faults []scenario.Fault
	seen   map[scenario.Fault]bool
}

// NewFaultDomain creates an empty domain over the given model.
func NewFaultDomain(mdl *model.Model) *FaultDomain {
	return &FaultDomain{mdl: mdl, seen: make(map[scenario.Fault]bool)}
}

// Model returns the model the domain selects from.
func (fd *FaultDomain) Model() *model.Model { return fd.mdl }

// Faults returns the cataloged pairs in insertion order.
func (fd *FaultDomain) Faults() []scenario.Fault {
	out := make([]scenario.Fault, len(fd.faults))
	copy(out, fd.faults)
	return out
}

// Len returns the number of cataloged pairs.
func (fd *FaultDomain) Len() int { return len(fd.faults) }

// AddFault catalogs one (block, mode) pair, validating both names against
// the model.
func (fd *FaultDomain) AddFault(blockName, modeName string) error {
	b, err := fd.mdl.Block(blockName)
	if err != nil {
		return err
	}
	if _, err := b.Mode().Get(modeName); err != nil {
		return err
	}
	f := scenario.Fault{Block: blockName, Mode: modeName}
	if !fd.seen[f] {
		fd.seen[f] = true
		fd.faults = append(fd.faults, f)
	}
	return nil
}

// AddFaults catalogs several pairs at once.
func (fd *FaultDomain) AddFaults(faults ...scenario.Fault) error {
	for _, f := range faults {
		if err := fd.AddFault(f.Block, f.Mode); err != nil {
			return err
		}
	}
	return nil
}

// AddAll catalogs every fault mode of every block in the model.
func (fd *FaultDomain) AddAll() error {
	for _, bname := range fd.mdl.BlockNames() {
		if err := fd.AddAllBlockModes(bname); err != nil {
			return err
		}
	}
	return nil
}

// AddAllModes catalogs every mode whose name matches one of the given names
// across all blocks: an exact match when exact is true, a substring match
// otherwise.
func (fd *FaultDomain) AddAllModes(exact bool, modeNames ...string) error {
	for _, want := range modeNames {
		for _, bname := range fd.mdl.BlockNames() {
			b, err := fd.mdl.Block(bname)
			if err != nil {
				return err
			}
			for _, mode := range b.Mode().FaultModes() {
				if sameMode(want, mode, exact) {
					if err := fd.AddFault(bname, mode); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func sameMode(want, mode string, exact bool) bool {
	if exact {
		return want == mode
	}
	return strings.Contains(mode, want)
}

// AddAllClassModes catalogs every mode of every block with one of the given
// class labels.
func (fd *FaultDomain) AddAllClassModes(classes ...string) error {
	for _, class := range classes {
		for _, bname := range fd.mdl.BlocksOfClass(class) {
			if err := fd.AddAllBlockModes(bname); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddAllBlockModes catalogs every mode of the named blocks.
func (fd *FaultDomain) AddAllBlockModes(blockNames ...string) error {
	for _, bname := range blockNames {
		b, err := fd.mdl.Block(bname)
		if err != nil {
			return err
		}
		for _, mode := range b.Mode().FaultModes() {
			if err := fd.AddFault(bname, mode); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddSingleComponentModes catalogs, for each named block (all blocks when
// none are named), the modes contributed by its first component only. Blocks
// without components are skipped. Families of identical components then get
// one representative instead of a combinatorial blowup.
func (fd *FaultDomain) AddSingleComponentModes(blockNames ...string) error {
	if len(blockNames) == 0 {
		blockNames = fd.mdl.BlockNames()
	}
	for _, bname := range blockNames {
		b, err := fd.mdl.Block(bname)
		if err != nil {
			return err
		}
		comps := b.Components()
		if len(comps) == 0 {
			continue
		}
		modes, err := b.ComponentModes(comps[0])
		if err != nil {
			return err
		}
		for _, mode := range modes {
			if err := fd.AddFault(bname, mode); err != nil {
				return err
			}
		}
	}
	return nil
}

// combinations enumerates all k-subsets of the domain's faults in
// lexicographic index order.
func (fd *FaultDomain) combinations(k int) ([][]scenario.Fault, error) {
	if k < 1 || k > len(fd.faults) {
		return nil, simerr.Config("sample", "joint", "cannot draw %d faults from a domain of %d", k, len(fd.faults))
	}
	var out [][]scenario.Fault
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		pick := make([]scenario.Fault, k)
		for i, j := range idx {
			pick[i] = fd.faults[j]
		}
		out = append(out, pick)

		i := k - 1
		for i >= 0 && idx[i] == len(fd.faults)-k+i {
			i--
		}
		if i < 0 {
			return out, nil
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
