package cmd

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/identify"
	"github.com/kozaktomas/facegate/internal/vision"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [subject-id] [image]",
	Short: "Verify an image against one enrolled subject",
	Long: `Verify that the face in an image belongs to the given subject. The
largest detected face is compared against all of the subject's enrolled
templates and the best distance decides the outcome.`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().Float64("threshold", 0, "Override the match distance threshold")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	subjectID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || subjectID <= 0 {
		return fmt.Errorf("invalid subject id %q", args[0])
	}

	frame, err := loadImage(args[1])
	if err != nil {
		return err
	}

	pool, repo, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	detector := vision.NewHTTPDetector(cfg.Extractor.URL)
	boxes := detector.Detect(frame)
	if len(boxes) == 0 {
		return errors.New("no face detected in image")
	}

	box := boxes[0]
	for _, b := range boxes[1:] {
		if b.Width()*b.Height() > box.Width()*box.Height() {
			box = b
		}
	}

	crop, ok := vision.ExtractRegion(frame, box)
	if !ok {
		return errors.New("face region lies outside the frame")
	}

	extractor := vision.NewHTTPExtractor(cfg.Extractor.URL)
	descriptor, ok := extractor.Extract(crop)
	if !ok {
		return errors.New("failed to extract a descriptor from the face")
	}

	verifier := identify.NewVerifier(repo, buildMatcher(cfg, mustGetFloat64(cmd, "threshold")))
	result, err := verifier.VerifySubject(cmd.Context(), subjectID, descriptor)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("subject %d not found", subjectID)
		}
		return err
	}

	if result.Match {
		fmt.Printf("MATCH: %s %s  distance=%.4f  confidence=%.2f\n",
			result.Subject.Name, result.Subject.Surname, result.Distance, result.Confidence)
	} else {
		fmt.Printf("NO MATCH: %s %s  distance=%.4f\n",
			result.Subject.Name, result.Subject.Surname, result.Distance)
	}
	return nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
