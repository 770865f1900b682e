package telemetry

import (
	"io"

	"invmon/types"
	"invmon/x/fmtx"
)

// WriteLine prints one console line for s.
func WriteLine(w io.Writer, s types.Snapshot) error {
	rt := "inf"
	if s.RuntimeS != types.RuntimeUnbounded {
		rt = fmtx.Sprintf("%ds", s.RuntimeS)
	}
	var err error
	if s.EnvValid {
		_, err = fmtx.Fprintf(w, "env T=%.2fC RH=%.2f%% ", s.TempC, s.Humidity)
	} else {
		_, err = io.WriteString(w, "env - ")
	}
	if err != nil {
		return err
	}
	if !s.PowerValid {
		_, err = io.WriteString(w, "power -\n")
		return err
	}
	_, err = fmtx.Fprintf(w, "power V=%.2fV I=%.2fA P=%.2fW SoC=%.1f%% RT=%s INV=%s BAT=%s\n",
		s.VoltageV, s.CurrentA, s.PowerW, s.BatteryPercent, rt, s.Inverter.String(), s.Battery.String())
	return err
}
