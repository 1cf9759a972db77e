package deps

import "shelfward/internal/config"

// Required builds the requirement list for the configured tool binaries.
func Required(cfg *config.Config) []Requirement {
	binary := "ffmpeg"
	if cfg != nil {
		binary = cfg.FFmpegBinary()
	}
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     binary,
			Description: "Decrypts and remuxes downloaded audio",
		},
	}
}
