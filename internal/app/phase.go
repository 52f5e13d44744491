package app

// Phase is the step an analysis run is in. A run moves through
// ValidatingInputs, SubmittingRequest and AwaitingResponse while its
// previews load alongside, then PreviewingMeshes if previews are still
// loading once the response is in, and ends in RenderingResults or
// ReportingError before returning to Idle.
type Phase int

const (
	Idle Phase = iota
	ValidatingInputs
	PreviewingMeshes
	SubmittingRequest
	AwaitingResponse
	RenderingResults
	ReportingError
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case ValidatingInputs:
		return "validating inputs"
	case PreviewingMeshes:
		return "previewing meshes"
	case SubmittingRequest:
		return "submitting request"
	case AwaitingResponse:
		return "awaiting response"
	case RenderingResults:
		return "rendering results"
	case ReportingError:
		return "reporting error"
	default:
		return "unknown"
	}
}

// Status texts shown to the user
const (
	StatusMissingInput = "Upload both Right and Left meshes."
	StatusProcessing   = "Uploading + analyzing…"
	StatusDone         = "Done."
	StatusCanceled     = "Canceled."
)

// SideKeys are the per-side fields shown in the right and left tables
var SideKeys = []string{
	"volume_total_mm3",
	"volume_cartilaginous_mm3",
	"volume_bony_mm3",
	"istmo_position_mm",
	"istmo_position_norm",
	"canal_length_mm",
	"sections_used",
	"convergence_error_mm3",
	"convergence_error_cm3",
	"relative_error_percent",
}

// ComparisonKeys are the fields shown in the comparison table
var ComparisonKeys = []string{
	"total_volume_diff_percent",
	"cartilaginous_volume_diff_percent",
	"bony_volume_diff_percent",
	"istmo_shift_mm",
	"istmo_shift_norm",
	"canal_length_diff_mm",
}

// ComparisonField is the per-side field plotted in the comparison chart
const ComparisonField = "istmo_position_norm"
