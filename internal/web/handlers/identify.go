package handlers

import (
	"errors"
	"image"
	_ "image/jpeg" // register decoders for uploaded images
	_ "image/png"
	"net/http"

	"github.com/kozaktomas/facegate/internal/biometric"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/identify"
	"github.com/kozaktomas/facegate/internal/vision"
)

// maxUploadSize limits identify/verify image uploads (16 MB).
const maxUploadSize = 16 << 20

// IdentifyHandler answers one-shot identification and verification requests
// against an uploaded image.
type IdentifyHandler struct {
	identifier *identify.Identifier
	verifier   *identify.Verifier
	detector   vision.Detector
	extractor  vision.Extractor
	maxFaces   int
}

// NewIdentifyHandler creates an identify handler.
func NewIdentifyHandler(
	identifier *identify.Identifier,
	verifier *identify.Verifier,
	detector vision.Detector,
	extractor vision.Extractor,
	maxFaces int,
) *IdentifyHandler {
	if maxFaces < 1 {
		maxFaces = 1
	}
	return &IdentifyHandler{
		identifier: identifier,
		verifier:   verifier,
		detector:   detector,
		extractor:  extractor,
		maxFaces:   maxFaces,
	}
}

// FaceResult pairs a detected face with its match outcome.
type FaceResult struct {
	Box   biometric.BoundingBox `json:"box"`
	Match identify.MatchResult  `json:"match"`
}

// Identify matches every face in the uploaded image against the enrolled
// population.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	frame, ok := h.decodeUpload(w, r)
	if !ok {
		return
	}

	boxes := h.detector.Detect(frame)
	if len(boxes) == 0 {
		respondJSON(w, http.StatusOK, map[string]any{"faces": []FaceResult{}})
		return
	}
	if len(boxes) > h.maxFaces {
		boxes = boxes[:h.maxFaces]
	}

	results := make([]FaceResult, 0, len(boxes))
	for _, box := range boxes {
		descriptor, ok := h.extractDescriptor(frame, box)
		if !ok {
			continue
		}
		match, err := h.identifier.Identify(r.Context(), descriptor)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "identification failed")
			return
		}
		results = append(results, FaceResult{Box: box, Match: match})
	}

	respondJSON(w, http.StatusOK, map[string]any{"faces": results})
}

// Verify checks the largest face in the uploaded image against one subject.
func (h *IdentifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectIDParam(w, r)
	if !ok {
		return
	}

	frame, ok := h.decodeUpload(w, r)
	if !ok {
		return
	}

	boxes := h.detector.Detect(frame)
	if len(boxes) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "no face in image")
		return
	}

	descriptor, ok := h.extractDescriptor(frame, largestBox(boxes))
	if !ok {
		respondError(w, http.StatusUnprocessableEntity, "descriptor extraction failed")
		return
	}

	result, err := h.verifier.VerifySubject(r.Context(), id, descriptor)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "subject not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "verification failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// decodeUpload reads the "file" part of a multipart upload and decodes it as
// an image. Writes an error response and returns false on failure.
func (h *IdentifyHandler) decodeUpload(w http.ResponseWriter, r *http.Request) (image.Image, bool) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return nil, false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return nil, false
	}
	defer file.Close()

	frame, _, err := image.Decode(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unsupported image format")
		return nil, false
	}
	return frame, true
}

func (h *IdentifyHandler) extractDescriptor(frame image.Image, box biometric.BoundingBox) (biometric.Descriptor, bool) {
	crop, ok := vision.ExtractRegion(frame, box)
	if !ok {
		return nil, false
	}
	descriptor, ok := h.extractor.Extract(crop)
	if !ok || !descriptor.Valid() {
		return nil, false
	}
	return descriptor, true
}

func largestBox(boxes []biometric.BoundingBox) biometric.BoundingBox {
	best := boxes[0]
	bestArea := best.Width() * best.Height()
	for _, box := range boxes[1:] {
		if area := box.Width() * box.Height(); area > bestArea {
			best, bestArea = box, area
		}
	}
	return best
}
