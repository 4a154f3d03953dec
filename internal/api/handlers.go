package api

import (
	"net/http"
	"strconv"

	"github.com/sprite-ai/auditor/internal/model"
	"github.com/sprite-ai/auditor/internal/rangeset"
	"github.com/sprite-ai/auditor/internal/review"
)

// --- Root and health ---

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Send requests to /reviews, /transform, and /comments endpoints\n"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Reviews ---

type reviewStateJSON struct {
	FileName   string       `json:"file_name,omitempty"`
	Reviewed   rangeset.Set `json:"reviewed"`
	Modified   rangeset.Set `json:"modified"`
	Ignored    rangeset.Set `json:"ignored"`
	TotalLines int          `json:"total_lines"`
}

func toReviewState(file string, fs review.FileState) reviewStateJSON {
	return reviewStateJSON{
		FileName:   file,
		Reviewed:   fs.Reviewed,
		Modified:   fs.Modified,
		Ignored:    fs.Ignored,
		TotalLines: fs.TotalLines,
	}
}

type updateReviewRequest struct {
	FileName    string        `json:"file_name" validate:"required"`
	StartLine   int           `json:"start_line" validate:"gte=0"`
	EndLine     int           `json:"end_line" validate:"gtefield=StartLine"`
	ReviewState *review.State `json:"review_state" validate:"required"`
	TotalLines  int           `json:"total_lines" validate:"gte=0"`
}

func (req updateReviewRequest) update() (review.Update, error) {
	r, err := rangeset.NewRange(req.StartLine, req.EndLine)
	if err != nil {
		return review.Update{}, err
	}
	return review.Update{
		File:       req.FileName,
		Range:      r,
		State:      *req.ReviewState,
		TotalLines: req.TotalLines,
	}, nil
}

type fileRequest struct {
	FileName string `json:"file_name" validate:"required"`
}

func (s *Server) handleGetReviews(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file_name")
	if file == "" {
		s.writeError(w, http.StatusBadRequest, "file_name is required")
		return
	}
	fs, _, err := s.svc.ReviewState(r.Context(), file)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toReviewState("", fs))
}

func (s *Server) handleUpdateReviews(w http.ResponseWriter, r *http.Request) {
	var req updateReviewRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	u, err := req.update()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	fs, err := s.svc.UpdateReviewState(r.Context(), u)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toReviewState("", fs))
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	fs, changed, err := s.svc.TransformReviewState(r.Context(), req.FileName)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if changed {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, toReviewState("", fs))
}

// --- Info ---

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.Info(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// --- Comments ---

type createCommentRequest struct {
	FileName   string `json:"file_name" validate:"required"`
	LineNumber int    `json:"line_number" validate:"gte=0"`
	Body       string `json:"body" validate:"required"`
	Author     string `json:"author" validate:"required"`
}

type updateCommentRequest struct {
	FileName   string `json:"file_name" validate:"required"`
	LineNumber int    `json:"line_number" validate:"gte=0"`
	CommentID  string `json:"comment_id" validate:"required"`
	Body       string `json:"body" validate:"required"`
	Author     string `json:"author" validate:"required"`
}

type deleteCommentRequest struct {
	FileName   string `json:"file_name" validate:"required"`
	LineNumber int    `json:"line_number" validate:"gte=0"`
	CommentID  string `json:"comment_id" validate:"required"`
}

func (s *Server) handleGetComments(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file_name")
	if file == "" {
		s.writeError(w, http.StatusBadRequest, "file_name is required")
		return
	}
	comments, err := s.svc.Comments(r.Context(), file)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if lineParam := r.URL.Query().Get("line_number"); lineParam != "" {
		line, err := strconv.Atoi(lineParam)
		if err != nil || line < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid line_number")
			return
		}
		filtered := model.FileComments{}
		if cs, ok := comments[line]; ok {
			filtered[line] = cs
		}
		comments = filtered
	}
	s.writeJSON(w, http.StatusOK, comments)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	c, err := s.svc.AddComment(r.Context(), req.FileName, req.LineNumber, req.Body, req.Author)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	var req updateCommentRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	err := s.svc.UpdateComment(r.Context(), req.FileName, req.LineNumber, req.CommentID, req.Body, req.Author)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	var req deleteCommentRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if err := s.svc.DeleteComment(r.Context(), req.FileName, req.LineNumber, req.CommentID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Metadata ---

type updateMetadataRequest struct {
	FileName string         `json:"file_name" validate:"required"`
	Metadata model.Metadata `json:"metadata"`
}

func (s *Server) handleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var req updateMetadataRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if err := s.svc.SetMetadata(r.Context(), req.FileName, req.Metadata); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, req.Metadata)
}
