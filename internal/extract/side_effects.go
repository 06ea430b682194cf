package extract

// Severity tags, always the leftmost token of a side-effect record.
const (
	Serious    = "重篤"
	NonSerious = "非重篤"
)

// sideEffects collects serious adverse reactions and the other adverse
// reactions, each tagged with its severity.
func (s *scope) sideEffects() []Record {
	out := &emitter{cat: SideEffects}

	for _, section := range s.sections(".//SeriousAdverseEvents") {
		s.walkSection(section, Serious, out)
	}

	for _, section := range s.sections(".//OtherAdverseEvents") {
		// Instruction qualifiers scope every reaction description of the section.
		var conds []Condition
		for _, item := range s.doc.FindAll(".//Instructions/SimpleList/Item", section) {
			conds = append(conds, Condition(nil).With(s.qualifier(item)))
		}
		if len(conds) == 0 {
			conds = []Condition{nil}
		}
		descriptions := s.texts(".//AdverseReactionDescription/Detail/Lang[@xml:lang='ja']", section)
		for _, cond := range conds {
			for _, d := range descriptions {
				out.add(render(NonSerious, cond, d))
			}
		}

		for _, other := range s.doc.FindAll(".//OtherAdverse", section) {
			s.walkSection(other, NonSerious, out)
			for _, block := range s.doc.FindAll(".//SimpleTable", other) {
				for _, t := range s.tableRecords(block, NonSerious) {
					out.add(t)
				}
			}
		}
	}
	return Dedupe(out.records)
}
