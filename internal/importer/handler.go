package importer

import (
	"errors"
	"path/filepath"
	"strings"

	"farm-market-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// POST /api/import (multipart: file=<.json|.xlsx>, reset=true|false)
func ImportHandler(im *Importer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "A batch file is required")
		}

		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		if ext != ".json" && ext != ".xlsx" {
			return fiber.NewError(fiber.StatusBadRequest, "Only .json and .xlsx files can be imported")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return httpx.Internal(err, "Failed to read uploaded file")
		}
		defer file.Close()

		var records []FarmRecord
		if ext == ".xlsx" {
			records, err = ParseWorkbook(file)
		} else {
			records, err = Parse(file)
		}
		if err != nil {
			if errors.Is(err, ErrNotArray) || errors.Is(err, ErrMalformed) || errors.Is(err, ErrBadWorkbook) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return httpx.Internal(err, "Failed to read uploaded file")
		}

		opts := Options{Reset: c.FormValue("reset") == "true"}
		im.log.Info("import requested",
			zap.String("file", fileHeader.Filename),
			zap.Int("records", len(records)),
			zap.Bool("reset", opts.Reset))

		res, err := im.Run(c.UserContext(), records, opts)
		if err != nil {
			return httpx.Internal(err, "Import failed and was rolled back")
		}

		return httpx.OK(c, fiber.Map{
			"message": "Import completed",
			"result":  res,
		})
	}
}
