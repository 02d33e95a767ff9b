package controllers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/meinhoongagan/spa-app/config"
	"github.com/meinhoongagan/spa-app/db"
	"github.com/meinhoongagan/spa-app/middleware"
	"github.com/meinhoongagan/spa-app/models"
	"github.com/meinhoongagan/spa-app/realtime"
	"github.com/meinhoongagan/spa-app/utils"
)

func listServices() ([]models.Service, error) {
	services := []models.Service{}
	err := db.DB.Order("created_at asc").Order("id asc").Find(&services).Error
	return services, err
}

// GetAllServices returns all services in the order they were added
func GetAllServices(c *fiber.Ctx) error {
	services, err := listServices()
	if err != nil {
		return utils.Internal(err.Error(), err)
	}
	return c.JSON(services)
}

// GetFeaturedServices returns the home screen sections
func GetFeaturedServices(c *fiber.Ctx) error {
	services, err := listServices()
	if err != nil {
		return utils.Internal(err.Error(), err)
	}
	return c.JSON(models.NewCatalog(services))
}

func GetService(c *fiber.Ctx) error {
	service, err := findService(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(service)
}

// StreamServices pushes the catalog and its changes
func StreamServices(c *fiber.Ctx) error {
	return StreamPath(c, "services", func() (any, error) {
		return listServices()
	})
}

func findService(id string) (*models.Service, error) {
	var service models.Service
	if err := db.DB.First(&service, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Service not found")
		}
		return nil, utils.Internal(err.Error(), err)
	}
	return &service, nil
}

// serviceForm is the multipart body of create and update
type serviceForm struct {
	ServiceName string
	Price       float64
	Description string
}

func parseServiceForm(c *fiber.Ctx) (serviceForm, error) {
	form := serviceForm{
		ServiceName: strings.TrimSpace(c.FormValue("serviceName")),
		Description: strings.TrimSpace(c.FormValue("description")),
	}
	if form.ServiceName == "" {
		return form, utils.BadRequest(utils.CodeValidation, "serviceName is required")
	}

	rawPrice := strings.TrimSpace(c.FormValue("price"))
	if rawPrice == "" {
		return form, utils.BadRequest(utils.CodeValidation, "price is required")
	}
	price, err := strconv.ParseFloat(rawPrice, 64)
	if err != nil || price < 0 {
		return form, utils.BadRequest(utils.CodeValidation, "price must be a non-negative number")
	}
	form.Price = price
	return form, nil
}

// uploadServiceImage uploads the "image" file if one was sent. ok is false
// when there was no file.
func uploadServiceImage(c *fiber.Ctx) (url string, ok bool, err error) {
	file, err := c.FormFile("image")
	if err != nil {
		return "", false, nil
	}

	f, err := file.Open()
	if err != nil {
		return "", true, utils.Internal("Failed to open image", err)
	}
	defer f.Close()

	publicID := fmt.Sprintf("service_%d", time.Now().UnixNano())
	url, err = utils.UploadImage(c.UserContext(), f, publicID, config.Get().MediaFolder+"/services")
	if err != nil {
		return "", true, utils.NewError(fiber.StatusBadGateway, utils.CodeUploadFailed, err.Error(), err)
	}
	return url, true, nil
}

// formHas reports whether the request body carries key, even when empty
func formHas(c *fiber.Ctx, key string) bool {
	if form, err := c.MultipartForm(); err == nil {
		_, ok := form.Value[key]
		return ok
	}
	return c.Request().PostArgs().Has(key)
}

// CreateService creates a new service. The image is uploaded before the
// record is written; if the write then fails the upload is left behind.
func CreateService(c *fiber.Ctx) error {
	form, err := parseServiceForm(c)
	if err != nil {
		return err
	}

	imageURL, _, err := uploadServiceImage(c)
	if err != nil {
		return err
	}

	creator := ""
	if u := middleware.Session(c).Record(); u != nil {
		creator = u.NameOrEmail()
	}
	service := models.Service{
		ServiceName: form.ServiceName,
		Price:       form.Price,
		Description: form.Description,
		ImageURL:    imageURL,
		Creator:     creator,
	}
	if err := db.DB.Create(&service).Error; err != nil {
		if imageURL != "" {
			log.Warn().Str("image_url", imageURL).Msg("orphaned upload: service write failed")
		}
		return utils.Internal(err.Error(), err)
	}
	service.PromoPrice = service.Price * models.PromoRate

	realtime.Emit(c.UserContext(), realtime.ServicePath(service.ID), realtime.OpPut, service)
	return c.Status(fiber.StatusCreated).JSON(service)
}

// UpdateService updates a service. A new image file replaces the image,
// an imageUrl field sets it (empty clears it), otherwise it is kept.
func UpdateService(c *fiber.Ctx) error {
	service, err := findService(c.Params("id"))
	if err != nil {
		return err
	}

	form, err := parseServiceForm(c)
	if err != nil {
		return err
	}

	imageURL, uploaded, err := uploadServiceImage(c)
	if err != nil {
		return err
	}
	switch {
	case uploaded:
		service.ImageURL = imageURL
	case formHas(c, "imageUrl"):
		service.ImageURL = strings.TrimSpace(c.FormValue("imageUrl"))
	}

	service.ServiceName = form.ServiceName
	service.Price = form.Price
	service.Description = form.Description
	if err := db.DB.Save(service).Error; err != nil {
		if uploaded {
			log.Warn().Str("image_url", imageURL).Str("service_id", service.ID).Msg("orphaned upload: service write failed")
		}
		return utils.Internal(err.Error(), err)
	}
	service.PromoPrice = service.Price * models.PromoRate

	realtime.Emit(c.UserContext(), realtime.ServicePath(service.ID), realtime.OpPut, service)
	return c.JSON(service)
}

// DeleteService deletes a service. Registrations keep their snapshot.
func DeleteService(c *fiber.Ctx) error {
	id := c.Params("id")
	res := db.DB.Delete(&models.Service{}, "id = ?", id)
	if res.Error != nil {
		return utils.Internal(res.Error.Error(), res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NotFound("Service not found")
	}

	realtime.Emit(c.UserContext(), realtime.ServicePath(id), realtime.OpDelete, nil)
	return c.SendStatus(fiber.StatusNoContent)
}
