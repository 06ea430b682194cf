package extract

// indications collects efficacy statements and the therapeutic
// classification name.
func (s *scope) indications() []Record {
	out := &emitter{cat: Indications}
	for _, section := range s.sections(".//IndicationsOrEfficacy") {
		for _, d := range s.directDetails(section) {
			out.add(d)
		}
		s.walkSection(section, "", out)
	}
	for _, t := range s.texts(".//TherapeuticClassification/Detail/Lang[@xml:lang='ja']", nil) {
		out.add(t)
	}
	return Dedupe(out.records)
}

// contraindications collects general contraindications and the drugs
// that must not be combined.
func (s *scope) contraindications() []Record {
	out := &emitter{cat: Contraindications}
	for _, section := range s.sections(".//ContraIndications") {
		for _, d := range s.directDetails(section) {
			out.add(d)
		}
		s.walkSection(section, "", out)
	}
	for _, drug := range s.sections(".//ContraIndicatedCombinations//Drug") {
		for _, t := range s.texts(".//DrugName/Detail/Lang[@xml:lang='ja']", drug) {
			out.add(t)
		}
		for _, t := range s.texts(".//ClinSymptomsAndMeasures/Detail/Lang[@xml:lang='ja']", drug) {
			out.add(t)
		}
		for _, t := range s.texts(".//MechanismAndRiskFactors/Detail/Lang[@xml:lang='ja']", drug) {
			out.add(t)
		}
	}
	return Dedupe(out.records)
}

// warnings collects boxed warnings and the precaution sections.
func (s *scope) warnings() []Record {
	out := &emitter{cat: Warnings}
	for _, section := range s.sections(".//Warnings", ".//ImportantPrecautions", ".//UseInSpecificPopulations") {
		s.walkSection(section, "", out)
	}
	for _, info := range s.sections(".//PrecautionsForApplication//OtherInformation", ".//PrecautionsForHandling") {
		for _, d := range s.directDetails(info) {
			out.add(d)
		}
	}
	return Dedupe(out.records)
}

const (
	symptomsPrefix  = "臨床症状・措置: "
	mechanismPrefix = "機序・危険因子: "
)

// interactions collects drugs requiring caution when combined and the
// general interaction notes.
func (s *scope) interactions() []Record {
	out := &emitter{cat: Interactions}
	for _, drug := range s.sections(".//PrecautionsCombinations//Drug") {
		for _, t := range s.texts(".//DrugName/Detail/Lang[@xml:lang='ja']", drug) {
			out.add(t)
		}
		for _, t := range s.texts(".//ClinSymptomsAndMeasures/Detail/Lang[@xml:lang='ja']", drug) {
			out.add(symptomsPrefix + t)
		}
		for _, t := range s.texts(".//MechanismAndRiskFactors/Detail/Lang[@xml:lang='ja']", drug) {
			out.add(mechanismPrefix + t)
		}
	}
	for _, section := range s.sections(".//DrugInteractions") {
		s.walkSection(section, "", out)
	}
	return Dedupe(out.records)
}
