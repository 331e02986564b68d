package server

import (
	"encoding/json"
	"net/http"

	"Chroma/core/colorize"
	"Chroma/core/pipeline"
	"Chroma/core/restore"
	"Chroma/core/youtube"
)

// YouTubeColorizeRequest YouTube 上色请求体
type YouTubeColorizeRequest struct {
	URL          string `json:"url" validate:"required,url"`
	RenderFactor *int   `json:"renderFactor"`
	JobID        string `json:"jobId" validate:"omitempty,uuid"`
}

// ColorizeImageHandler handles POST /api/image/colorize.
// Form fields: file (jpg/jpeg/png), render_factor (7..40), job_id (optional uuid).
func (s *Server) ColorizeImageHandler(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r, "file", s.cfg.MaxImageUpload, ".jpg", ".jpeg", ".png")
	if err != nil {
		writeError(w, err)
		return
	}
	defer up.Close()

	rf := colorize.ImageRenderRange.Parse(r.FormValue("render_factor"))
	res, err := s.pipeline.ColorizeImage(r.Context(), pipeline.ImageRequest{
		JobID:        r.FormValue("job_id"),
		SourceName:   up.name,
		Body:         up.file,
		RenderFactor: rf,
	})
	s.respondJob(w, res, err)
}

// ColorizeVideoHandler handles POST /api/video/colorize.
// Form fields: file (mp4), render_factor (1..40), job_id (optional uuid).
func (s *Server) ColorizeVideoHandler(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r, "file", s.cfg.MaxVideoUpload, ".mp4")
	if err != nil {
		writeError(w, err)
		return
	}
	defer up.Close()

	rf := colorize.VideoRenderRange.Parse(r.FormValue("render_factor"))
	res, err := s.pipeline.ColorizeVideo(r.Context(), pipeline.VideoRequest{
		JobID:        r.FormValue("job_id"),
		SourceName:   up.name,
		Body:         up.file,
		RenderFactor: rf,
	})
	s.respondJob(w, res, err)
}

// ColorizeYouTubeHandler handles POST /api/youtube/colorize with a JSON body.
func (s *Server) ColorizeYouTubeHandler(w http.ResponseWriter, r *http.Request) {
	var req YouTubeColorizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, badRequest("Invalid request body"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, badRequest("Please enter a valid YouTube URL"))
		return
	}
	if !youtube.IsYouTubeURL(req.URL) {
		writeError(w, badRequest("Please enter a valid YouTube URL"))
		return
	}

	rf := colorize.VideoRenderRange.Default
	if req.RenderFactor != nil {
		rf = colorize.VideoRenderRange.Clamp(*req.RenderFactor)
	}

	res, err := s.pipeline.ColorizeYouTube(r.Context(), pipeline.YouTubeRequest{
		JobID:        req.JobID,
		URL:          req.URL,
		RenderFactor: rf,
	})
	s.respondJob(w, res, err)
}

// EnhanceAudioHandler handles POST /api/audio/enhance.
// Form fields: file (wav), mode (0..2), job_id (optional uuid).
func (s *Server) EnhanceAudioHandler(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r, "file", s.cfg.MaxAudioUpload, ".wav")
	if err != nil {
		writeError(w, err)
		return
	}
	defer up.Close()

	res, err := s.pipeline.EnhanceAudio(r.Context(), pipeline.AudioRequest{
		JobID:      r.FormValue("job_id"),
		SourceName: up.name,
		Body:       up.file,
		Mode:       restore.ParseMode(r.FormValue("mode")),
	})
	s.respondJob(w, res, err)
}

func (s *Server) respondJob(w http.ResponseWriter, res *pipeline.Result, err error) {
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.jobResponse(res)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
