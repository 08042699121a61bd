package models

// Table is a logical table name in the backing spreadsheet
type Table string

const (
	TableContributions Table = "contributions"
	TableProspects     Table = "prospects"
	TableTargets       Table = "targets"
	TableSchools       Table = "schools"
	TableUsers         Table = "users"
	TableAll           Table = "all"
)

// DataTables lists every concrete table, in snapshot order
var DataTables = []Table{
	TableContributions,
	TableProspects,
	TableTargets,
	TableSchools,
	TableUsers,
}

// Valid returns true if t names a concrete table or the "all" wildcard
func (t Table) Valid() bool {
	if t == TableAll {
		return true
	}
	for _, dt := range DataTables {
		if t == dt {
			return true
		}
	}
	return false
}

// Row is a single spreadsheet row. A row whose every cell is empty is
// treated as deleted, since the backing store has no delete primitive.
type Row []string

// Blank returns true if every cell of the row is empty
func (r Row) Blank() bool {
	for _, c := range r {
		if c != "" {
			return false
		}
	}
	return true
}

// Clone returns a copy of the row
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Columns maps each table to its column headers. The first column of every
// table is the record id.
var Columns = map[Table][]string{
	TableContributions: {"id", "funder_id", "state_code", "fiscal_year", "amount", "date", "status", "description"},
	TableProspects:     {"id", "name", "state_code", "stage", "estimated_amount", "probability", "notes"},
	TableTargets:       {"id", "state_code", "fiscal_year", "target_amount", "priority", "description"},
	TableSchools:       {"id", "name", "state_code", "district", "type", "enrollment"},
	TableUsers:         {"id", "name", "email", "role"},
}

// RowChange pairs a zero-based data row index with its contents
type RowChange struct {
	Index int `json:"index"`
	Row   Row `json:"row"`
}
