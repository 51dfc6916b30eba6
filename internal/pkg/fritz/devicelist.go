package fritz

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"
)

// UpdateDevices fetches all devices and groups known to the hub, keyed by AIN.
func (c *Client) UpdateDevices(ctx context.Context) (map[string]*Device, error) {
	data, err := c.aha(ctx, GetDeviceListInfos, nil)
	if err != nil {
		return nil, err
	}

	list := xmlDeviceList{}
	if err := xml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: invalid device list: %w", ErrConnection, err)
	}

	devices := make(map[string]*Device, len(list.Devices)+len(list.Groups))
	for _, x := range append(list.Devices, list.Groups...) {
		device := newDevice(x)
		if device.AIN == "" {
			continue
		}
		devices[device.AIN] = device
	}
	c.logger.Debug("updated devices", zap.Int("count", len(devices)))
	return devices, nil
}

// HasTemplates reports whether the hub firmware supports templates.
func (c *Client) HasTemplates(ctx context.Context) (bool, error) {
	_, err := c.aha(ctx, GetTemplateListInfos, nil)
	if errors.Is(err, ErrHTTP) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateTemplates fetches all templates, keyed by AIN.
func (c *Client) UpdateTemplates(ctx context.Context) (map[string]*Template, error) {
	data, err := c.aha(ctx, GetTemplateListInfos, nil)
	if err != nil {
		return nil, err
	}

	list := xmlTemplateList{}
	if err := xml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: invalid template list: %w", ErrConnection, err)
	}

	templates := make(map[string]*Template, len(list.Templates))
	for _, x := range list.Templates {
		template := newTemplate(x)
		if template.AIN == "" {
			continue
		}
		templates[template.AIN] = template
	}
	c.logger.Debug("updated templates", zap.Int("count", len(templates)))
	return templates, nil
}

func ainParam(ain string) url.Values {
	return url.Values{"ain": {ain}}
}
