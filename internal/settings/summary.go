package settings

type Entry struct {
	Key   string
	Label string
	Value any
}

type Section struct {
	Group   Group
	Entries []Entry
}

// Summarize groups the record's values by section in table order.
func Summarize(r Record) []Section {
	sections := make([]Section, 0, len(Groups))
	for _, g := range Groups {
		sec := Section{Group: g}
		for _, f := range Fields {
			if f.Group != g {
				continue
			}
			v, _ := r.Get(f.Key)
			sec.Entries = append(sec.Entries, Entry{Key: f.Key, Label: f.Label, Value: v})
		}
		sections = append(sections, sec)
	}
	return sections
}

func (s *Store) Summary() []Section {
	return Summarize(s.Load())
}
