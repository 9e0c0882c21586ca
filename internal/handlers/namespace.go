package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/chunkfs/internal/models"
)

// CreateDirectory handles POST /create_directory
func (h *Handler) CreateDirectory(c *fiber.Ctx) error {
	p := c.FormValue("directory_path")
	if err := h.namespace.CreateDirectory(c.UserContext(), p); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(models.MessageResponse{Message: fmt.Sprintf("Directory '%s' created successfully", models.NormalizePath(p))})
}

// GetDirectory handles GET /get_directory
func (h *Handler) GetDirectory(c *fiber.Ctx) error {
	dirs, err := h.namespace.GetDirectories(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"directories": dirs})
}

// ListDirectory handles GET /list_directory
func (h *Handler) ListDirectory(c *fiber.Ctx) error {
	list, err := h.namespace.ListDirectory(c.UserContext(), form(c, "directory_path"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(list)
}

// MoveFile handles POST /move_file
func (h *Handler) MoveFile(c *fiber.Ctx) error {
	name, from, to := c.FormValue("file_name"), c.FormValue("original_path"), c.FormValue("destination_path")
	if err := h.namespace.MoveFile(c.UserContext(), name, from, to); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(models.MessageResponse{Message: fmt.Sprintf("File '%s' moved successfully from %s to %s", name, from, to)})
}

// CopyFile handles POST /copy_file
func (h *Handler) CopyFile(c *fiber.Ctx) error {
	name, from, to := c.FormValue("file_name"), c.FormValue("original_path"), c.FormValue("destination_path")
	id, err := h.namespace.CopyFile(c.UserContext(), name, from, to)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(models.UploadResponse{
		Message: fmt.Sprintf("File '%s' copied successfully from %s to %s", name, from, to),
		FileID:  id,
	})
}

// MoveFolder handles POST /move_folder
func (h *Handler) MoveFolder(c *fiber.Ctx) error {
	name, from, to := c.FormValue("folder_name"), c.FormValue("original_path"), c.FormValue("destination_path")
	if err := h.namespace.MoveFolder(c.UserContext(), name, from, to); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(models.MessageResponse{Message: fmt.Sprintf("Folder '%s' moved successfully from %s to %s", name, from, to)})
}

// CopyFolder handles POST /copy_folder
func (h *Handler) CopyFolder(c *fiber.Ctx) error {
	name, from, to := c.FormValue("folder_name"), c.FormValue("original_path"), c.FormValue("destination_path")
	if err := h.namespace.CopyFolder(c.UserContext(), name, from, to); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(models.MessageResponse{Message: fmt.Sprintf("Folder '%s' copied successfully from %s to %s", name, from, to)})
}

// DeleteFile handles POST /delete_file
func (h *Handler) DeleteFile(c *fiber.Ctx) error {
	name := c.FormValue("file_name")
	if err := h.namespace.DeleteFile(c.UserContext(), name, c.FormValue("directory_path", "/")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(models.MessageResponse{Message: fmt.Sprintf("File '%s' deleted successfully", name)})
}

// DeleteFolder handles POST /delete_folder
func (h *Handler) DeleteFolder(c *fiber.Ctx) error {
	name := c.FormValue("folder_name")
	if err := h.namespace.DeleteFolder(c.UserContext(), name, c.FormValue("directory_path", "/")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(models.MessageResponse{Message: fmt.Sprintf("Folder '%s' deleted successfully", name)})
}
