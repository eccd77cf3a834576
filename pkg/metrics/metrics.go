package metrics

/*
Labels and so on for metrics used in regbrowser.
*/

const (
	LabelMethod  = "method"
	LabelSuccess = "success"
	LabelKind    = "kind"
)
