package handlers

import (
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/services"
)

// UploadFile handles POST /upload_file
// Multipart form: file, number_of_chunks, directory_path (default "/")
func (h *Handler) UploadFile(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "No file part")
	}
	chunks, err := strconv.Atoi(c.FormValue("number_of_chunks"))
	if err != nil {
		return badRequest(c, "number_of_chunks must be an integer")
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "cannot open uploaded file")
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return badRequest(c, "cannot read uploaded file")
	}

	id, err := h.files.Upload(c.UserContext(), services.UploadInput{
		FileName:      fh.Filename,
		DirectoryPath: c.FormValue("directory_path", "/"),
		ChunkCount:    chunks,
		Data:          data,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(models.UploadResponse{Message: "File uploaded and split successfully", FileID: id})
}

// GetFile handles POST /get_file and returns the reassembled file as an attachment
func (h *Handler) GetFile(c *fiber.Ctx) error {
	data, f, err := h.files.Download(c.UserContext(), c.FormValue("file_name"), c.FormValue("directory_path", "/"))
	if err != nil {
		return h.fail(c, err)
	}
	c.Attachment(f.Name)
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Send(data)
}

// GetInfo handles GET /get_info
func (h *Handler) GetInfo(c *fiber.Ctx) error {
	infos, err := h.files.Info(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"directories": infos})
}

// DatanodeStatus handles GET /datanode_status
func (h *Handler) DatanodeStatus(c *fiber.Ctx) error {
	status, err := h.files.DatanodeStatus(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(status)
}

// ReReplicate handles POST /re_replicate
func (h *Handler) ReReplicate(c *fiber.Ctx) error {
	report, err := h.files.ReReplicate(c.UserContext(), c.FormValue("file_name"), c.FormValue("directory_path", "/"))
	if err != nil {
		return h.fail(c, err)
	}
	message := "Re-replication finished"
	switch {
	case report.NoActionNeeded:
		message = "All DataNodes Active, No Re-Replication Required"
	case len(report.Unrepaired) > 0:
		message = "Re-replication incomplete"
	}
	return c.JSON(fiber.Map{"message": message, "report": report})
}
