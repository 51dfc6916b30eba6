package fritz

import (
	"context"
	"math"
	"strconv"

	"go.uber.org/zap"
)

func (c *Client) SetSwitchState(ctx context.Context, ain string, on bool) error {
	cmd := SetSwitchOff
	if on {
		cmd = SetSwitchOn
	}
	if _, err := c.aha(ctx, cmd, ainParam(ain)); err != nil {
		return err
	}
	c.logger.Info("switch state changed", zap.String("ain", ain), zap.Bool("on", on))
	return nil
}

// SetTargetTemperature sets a thermostat set point. TemperatureOff and
// TemperatureOn switch the valve fully closed or open, other values are
// clamped to the 8-28 °C range the hub accepts.
func (c *Client) SetTargetTemperature(ctx context.Context, ain string, celsius float64) error {
	params := ainParam(ain)
	params.Set("param", strconv.Itoa(encodeTemperature(celsius)))
	if _, err := c.aha(ctx, SetHkrTsoll, params); err != nil {
		return err
	}
	c.logger.Info("target temperature changed", zap.String("ain", ain), zap.Float64("celsius", celsius))
	return nil
}

func (c *Client) ApplyTemplate(ctx context.Context, ain string) error {
	if _, err := c.aha(ctx, ApplyTemplate, ainParam(ain)); err != nil {
		return err
	}
	c.logger.Info("template applied", zap.String("ain", ain))
	return nil
}

func encodeTemperature(celsius float64) int {
	switch celsius {
	case TemperatureOff:
		return 253
	case TemperatureOn:
		return 254
	}
	celsius = math.Max(minTargetTemperature, math.Min(maxTargetTemperature, celsius))
	return int(math.Round(celsius * 2))
}
