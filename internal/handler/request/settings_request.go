package request

type SetAutoConvertRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}
