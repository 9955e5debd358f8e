package ingest

// Knowledge mirrors the ingestion service's knowledge resource. Only the
// fields the pipeline consumes are declared; the service returns more.
type Knowledge struct {
	ID           string `json:"id"`
	FileName     string `json:"file_name"`
	FilePath     string `json:"file_path"`
	FileHash     string `json:"file_hash"`
	ParseStatus  string `json:"parse_status"`
	ErrorMessage string `json:"error_message"`
}

// envelope is the response wrapper the ingestion service puts around every
// payload. Some deployments omit the success flag entirely, which counts as
// success.
type envelope struct {
	Success *bool      `json:"success"`
	Message string     `json:"message"`
	Data    *Knowledge `json:"data"`
}

func (e envelope) ok() bool {
	return e.Success == nil || *e.Success
}
