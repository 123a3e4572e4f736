package server

import (
	"net/http"

	"github.com/nextlevelbuilder/goforge/internal/files"
	"github.com/nextlevelbuilder/goforge/pkg/protocol"
)

// The file endpoints accept either a single-file body or a bulk `files`
// array. Detection is explicit: a present `files` field selects the bulk
// path and must then be structurally valid for the whole batch to run.

func (s *Server) handleFileCreate(w http.ResponseWriter, r *http.Request) {
	var req protocol.FileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if files.IsBulk(&req) {
		res, err := s.files.RunBulk(r.Context(), files.BulkCreate, req.Files)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	if req.FilePath == "" {
		badRequest(w, "filePath is required")
		return
	}
	res, err := s.files.Create(r.Context(), req.FilePath, req.Content, req.Overwrite)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFileUpdate(w http.ResponseWriter, r *http.Request) {
	var req protocol.FileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if files.IsBulk(&req) {
		res, err := s.files.RunBulk(r.Context(), files.BulkUpdate, req.Files)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	if req.FilePath == "" {
		badRequest(w, "filePath is required")
		return
	}
	res, err := s.files.Update(r.Context(), req.FilePath, req.Content, req.ShouldSnapshot)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	var req protocol.FileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if files.IsBulk(&req) {
		res, err := s.files.RunBulk(r.Context(), files.BulkDelete, req.Files)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	if req.FilePath == "" {
		badRequest(w, "filePath is required")
		return
	}
	res, err := s.files.Delete(r.Context(), req.FilePath, req.Force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFileRead(w http.ResponseWriter, r *http.Request) {
	var req protocol.FileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.FilePath == "" {
		badRequest(w, "filePath is required")
		return
	}

	res, err := s.files.Read(r.Context(), req.FilePath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFileList(w http.ResponseWriter, r *http.Request) {
	var req protocol.FileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	path := req.FilePath
	if path == "" {
		path = "."
	}

	res, err := s.files.List(r.Context(), path, files.ListOptions{
		Recursive:          req.Recursive,
		IncludeHidden:      req.IncludeHidden,
		IncludeCredentials: req.IncludeCredentials,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBackupList(w http.ResponseWriter, r *http.Request) {
	infos, err := s.backups.List()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]protocol.BackupInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, protocol.BackupInfo{
			Name:     info.Name,
			Size:     info.Size,
			Created:  info.Created,
			Modified: info.Modified,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"backups": out,
		"count":   len(out),
	})
}
