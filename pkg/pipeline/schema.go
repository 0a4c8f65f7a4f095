package pipeline

// Schema describes the structure of a training dataset: the target column
// and the feature groups, each routed to its own preprocessing branch.
type Schema struct {
	Target  string
	Numeric []string
	Nominal []string
	Ordinal []string
}

// Features lists every feature column in branch order.
func (s Schema) Features() []string {
	out := make([]string, 0, len(s.Numeric)+len(s.Nominal)+len(s.Ordinal))
	out = append(out, s.Numeric...)
	out = append(out, s.Nominal...)
	return append(out, s.Ordinal...)
}

// TripSchema is the column layout of the prepared taxi trip dataset.
func TripSchema() Schema {
	return Schema{
		Target: "cost",
		Numeric: []string{
			"distance",
			"dropoff_latitude",
			"dropoff_longitude",
			"passengers",
			"pickup_latitude",
			"pickup_longitude",
			"pickup_weekday",
			"pickup_month",
			"pickup_monthday",
			"pickup_hour",
			"pickup_minute",
			"pickup_second",
			"dropoff_weekday",
			"dropoff_month",
			"dropoff_monthday",
			"dropoff_hour",
			"dropoff_minute",
			"dropoff_second",
		},
		Nominal: []string{
			"store_forward",
			"vendor",
		},
		Ordinal: []string{},
	}
}
