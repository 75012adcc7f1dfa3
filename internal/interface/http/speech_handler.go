package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/eldertech-assistant/internal/domain/speech"
)

// maxAudioUpload caps how much of an upload is read; the service enforces the real limit.
const maxAudioUpload = 32 << 20

// Transcribe converts an uploaded recording to text.
func (h *Handler) Transcribe(c *gin.Context) {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "audio file is required", err))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "failed to read upload", err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxAudioUpload+1))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "transcription_failed", "failed to read file", err))
		return
	}

	result, err := h.speechSvc.Transcribe(c.Request.Context(), speech.TranscribeRequest{
		Audio:       data,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Language:    c.PostForm("language"),
		Prompt:      c.PostForm("prompt"),
	})
	if err != nil {
		abortWithError(c, domainError(err, "transcription_failed"))
		return
	}
	c.JSON(http.StatusOK, result)
}

// Synthesize renders text to speech and returns MP3 audio.
func (h *Handler) Synthesize(c *gin.Context) {
	var req speech.SynthesisRequest
	if !bindJSON(c, &req) {
		return
	}
	audio, err := h.speechSvc.Synthesize(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, domainError(err, "synthesis_failed"))
		return
	}
	c.Header("Content-Disposition", `inline; filename="speech.mp3"`)
	c.Header("X-Voice", audio.Voice)
	c.Header("X-Speed", strconv.FormatFloat(audio.Speed, 'f', -1, 64))
	c.Data(http.StatusOK, audio.ContentType, audio.Data)
}

// Voices lists the selectable speakers.
func (h *Handler) Voices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"voices": h.speechSvc.Voices()})
}
