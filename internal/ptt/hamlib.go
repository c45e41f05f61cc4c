//go:build hamlib

package ptt

import (
	"fmt"

	goHamlib "github.com/xylo04/goHamlib"

	"github.com/kg9x/freedvtnc/internal/tncerr"
)

// HamlibSink keys the radio through hamlib's own RIG_MODEL_NETRIGCTL
// backend instead of dialing rigctld directly (rigctld.go). Requires
// libhamlib at link time, hence the build tag.
type HamlibSink struct {
	rig *goHamlib.Rig
}

// NewHamlibSink opens a NETRIGCTL rig pointed at host:port, the
// client-side model that speaks rigctld's own network protocol.
func NewHamlibSink(host string, port int) (*HamlibSink, error) {
	rig := goHamlib.NewRig(goHamlib.RIG_MODEL_NETRIGCTL)
	if err := rig.SetConf("rig_pathname", fmt.Sprintf("%s:%d", host, port)); err != nil {
		return nil, tncerr.NewConfigError("ptt: hamlib set rig_pathname: %v", err)
	}
	if err := rig.Open(); err != nil {
		return nil, tncerr.NewConfigError("ptt: hamlib open NETRIGCTL %s:%d: %v", host, port, err)
	}
	return &HamlibSink{rig: rig}, nil
}

func (s *HamlibSink) Trigger() error { return s.rig.SetPTT(goHamlib.RIG_VFO_CURR, goHamlib.RIG_PTT_ON) }
func (s *HamlibSink) Release() error {
	return s.rig.SetPTT(goHamlib.RIG_VFO_CURR, goHamlib.RIG_PTT_OFF)
}
func (s *HamlibSink) Close() error { return s.rig.Close() }
