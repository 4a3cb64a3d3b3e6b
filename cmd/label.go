package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dataset-m/dsm/internal/annotation"
	"github.com/dataset-m/dsm/internal/images"
	"github.com/dataset-m/dsm/internal/logger"
	"github.com/dataset-m/dsm/internal/yolo"
)

func newLabelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Read and write YOLO label files",
		Long: `Convert between annotation JSON and YOLO label files.

Labels for dir/a.jpg live in dir/labels/a.txt and class names in
dir/labels/classes.txt. Rectangles are written as "class cx cy w h" and polygons
as "class 0 n x1 y1 ... xn yn", normalised to the image size.`,
	}

	cmd.AddCommand(newLabelEncodeCmd())
	cmd.AddCommand(newLabelDecodeCmd())
	cmd.AddCommand(newLabelShowCmd())
	cmd.AddCommand(newLabelClearCmd())
	cmd.AddCommand(newLabelImportLabelMeCmd())

	return cmd
}

// imageClasses returns the class list stored next to imagePath, empty when absent
func imageClasses(imagePath string) (*annotation.ClassList, error) {
	names, err := yolo.ReadClasses(yolo.ClassesPath(imagePath))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return annotation.NewClassList(names...), nil
}

func readAnnotations(r io.Reader) ([]annotation.Annotation, error) {
	var anns []annotation.Annotation
	if err := json.NewDecoder(r).Decode(&anns); err != nil {
		return nil, fmt.Errorf("failed to parse annotations: %w", err)
	}
	return anns, nil
}

func newLabelEncodeCmd() *cobra.Command {
	var input string
	var classes []string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "encode <image>",
		Short: "Write a label file from annotation JSON",
		Long: `Read a JSON array of annotations and write the YOLO label file of the image.

Rectangle:  {"type":"rectangle","label":"cat","x":10,"y":20,"width":30,"height":40}
Polygon:    {"type":"polygon","label":"cat","points":[[0,0],[10,0],[10,10]],"closed":true}

New labels are appended to labels/classes.txt. An empty array removes the label file.`,
		Example: `  # Encode from a file
  dsm label encode photos/a.jpg --input a.json

  # Encode from stdin and print instead of writing
  cat a.json | dsm label encode photos/a.jpg --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath := args[0]

			var r io.Reader = cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return fmt.Errorf("failed to open annotations: %w", err)
				}
				defer f.Close()
				r = f
			}
			anns, err := readAnnotations(r)
			if err != nil {
				return err
			}

			cl, err := imageClasses(imagePath)
			if err != nil {
				return err
			}
			for _, c := range classes {
				cl.ID(strings.TrimSpace(c))
			}

			if dryRun {
				w, h, err := images.Dimensions(imagePath)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), yolo.Encode(w, h, anns, cl))
				return nil
			}
			if err := yolo.SaveImage(imagePath, anns, cl); err != nil {
				return err
			}
			logger.S().Infow("Labels saved", "image", imagePath, "annotations", len(anns), "label", yolo.LabelPath(imagePath))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "Annotation JSON file (- for stdin)")
	cmd.Flags().StringSliceVar(&classes, "classes", nil, "Class names to register first, in id order")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the label text instead of writing it")

	return cmd
}

func newLabelDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <image>",
		Short: "Print the labels of an image as annotation JSON",
		Example: `  dsm label decode photos/a.jpg > a.json`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := imageClasses(args[0])
			if err != nil {
				return err
			}
			anns, err := yolo.Load(args[0], cl)
			if err != nil {
				return err
			}
			if anns == nil {
				anns = []annotation.Annotation{}
			}
			return printJSON(cmd.OutOrStdout(), anns)
		},
	}
	return cmd
}

func newLabelShowCmd() *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "show <image-or-dir>",
		Short: "Summarise the labels of an image or a folder",
		Example: `  dsm label show photos/a.jpg
  dsm label show photos --recursive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if !info.IsDir() {
				return showImage(w, args[0])
			}

			var paths []string
			if recursive {
				paths, err = images.Find(args[0], []string{"delete", yolo.LabelsDir})
			} else {
				paths, err = images.ListDir(args[0])
			}
			if err != nil {
				return err
			}
			labelled := 0
			for _, p := range paths {
				if yolo.HasLabel(p) {
					labelled++
				}
			}
			fmt.Fprintf(w, "Images:    %d\n", len(paths))
			fmt.Fprintf(w, "Labelled:  %d\n", labelled)
			fmt.Fprintf(w, "Unlabelled: %d\n", len(paths)-labelled)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Include sub folders")

	return cmd
}

func showImage(w io.Writer, imagePath string) error {
	cl, err := imageClasses(imagePath)
	if err != nil {
		return err
	}
	width, height, err := images.Dimensions(imagePath)
	if err != nil {
		return err
	}
	anns, err := yolo.Load(imagePath, cl)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Image: %s (%dx%d)\n", imagePath, width, height)
	fmt.Fprintf(w, "Label: %s\n", yolo.LabelPath(imagePath))
	fmt.Fprintf(w, "Annotations: %d\n\n", len(anns))
	for i, a := range anns {
		b := a.Bounds()
		switch a.Kind {
		case annotation.KindRectangle:
			fmt.Fprintf(w, "%3d  %-10s %-20s x=%d y=%d w=%d h=%d\n", i, a.Kind, a.Label, a.X(), a.Y(), a.Width(), a.Height())
		default:
			fmt.Fprintf(w, "%3d  %-10s %-20s %d points, bounds %v\n", i, a.Kind, a.Label, len(a.Points), b)
		}
	}
	return nil
}

func newLabelClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear <image>...",
		Short: "Delete the label files of images",
		Long: `Delete label files. The labels folder is removed when it ends up empty and
classes.txt is removed once no label files remain.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range args {
				if err := yolo.Remove(p); err != nil {
					return err
				}
				logger.S().Infow("Labels removed", "image", p)
			}
			return nil
		},
	}
	return cmd
}

func newLabelImportLabelMeCmd() *cobra.Command {
	var imageDir string

	cmd := &cobra.Command{
		Use:   "import-labelme <json>...",
		Short: "Convert LabelMe JSON files into YOLO labels",
		Long: `Convert LabelMe documents into YOLO label files. The image is looked up by the
document's imagePath, or by the JSON file name with an image extension, inside
--images (default: the folder of the JSON file). Polygons stay polygons; other
shapes become their bounding box.`,
		Example: `  dsm label import-labelme annotations/*.json --images photos`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imported := 0
			for _, jsonPath := range args {
				imagePath, err := importLabelMe(jsonPath, imageDir)
				if err != nil {
					logger.S().Warnw("Skipping LabelMe file", "file", jsonPath, "error", err)
					continue
				}
				imported++
				logger.S().Debugw("Imported LabelMe file", "file", jsonPath, "image", imagePath)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d files\n", imported, len(args))
			return nil
		},
	}

	cmd.Flags().StringVar(&imageDir, "images", "", "Folder holding the images")

	return cmd
}

func importLabelMe(jsonPath, imageDir string) (string, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return "", err
	}
	anns, w, h, err := yolo.FromLabelMe(data)
	if err != nil {
		return "", err
	}

	dir := imageDir
	if dir == "" {
		dir = filepath.Dir(jsonPath)
	}
	imagePath := findImageFor(jsonPath, data, dir)
	if imagePath == "" {
		return "", fmt.Errorf("no image found for %s", jsonPath)
	}

	cl, err := imageClasses(imagePath)
	if err != nil {
		return "", err
	}
	if w <= 0 || h <= 0 {
		if err := yolo.SaveImage(imagePath, anns, cl); err != nil {
			return "", err
		}
		return imagePath, nil
	}
	if err := yolo.Save(imagePath, w, h, anns, cl); err != nil {
		return "", err
	}
	return imagePath, nil
}

func findImageFor(jsonPath string, data []byte, dir string) string {
	var doc struct {
		ImagePath string `json:"imagePath"`
	}
	if json.Unmarshal(data, &doc) == nil && doc.ImagePath != "" {
		p := filepath.Join(dir, filepath.Base(filepath.FromSlash(doc.ImagePath)))
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	stem := strings.TrimSuffix(filepath.Base(jsonPath), filepath.Ext(jsonPath))
	for _, ext := range images.Extensions {
		for _, e := range []string{ext, strings.ToUpper(ext)} {
			p := filepath.Join(dir, stem+e)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}
