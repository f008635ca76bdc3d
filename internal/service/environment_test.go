package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"growbox/internal/logger"
	"growbox/internal/models"
	"growbox/internal/notify"
)

type fakeValve struct {
	mu           sync.Mutex
	states       map[int]bool
	calls        int
	failChannels map[int]bool
}

func newFakeValve() *fakeValve {
	return &fakeValve{states: map[int]bool{}, failChannels: map[int]bool{}}
}

func (v *fakeValve) SetRelay(_ context.Context, channel int, on bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.failChannels[channel] {
		return errors.New("endpoint offline")
	}
	v.states[channel] = on
	return nil
}

func (v *fakeValve) state(channel int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.states[channel]
}

func newTestEnvironment(t *testing.T) (*EnvironmentService, *fakeValve, *fakeGateway) {
	t.Helper()
	gw := newFakeGateway()
	valve := newFakeValve()
	s := NewEnvironmentService(valve, gw, nil, &fakeSettingsRepo{}, &fakeEventRepo{}, notify.Nop{}, fixedDayNight{day: true, scheduled: true}, logger.Get(logger.ErrorLevel))
	s.cfg = models.CO2Settings{
		Mode:           models.CO2ModeAuto,
		DayTargetPPM:   800,
		NightTargetPPM: 800,
		TolerancePPM:   24,
		DayStartHour:   6,
		DayEndHour:     22,
	}
	return s, valve, gw
}

func co2Snap(ppm float64) models.SensorSnapshot {
	return models.SensorSnapshot{CO2: models.Float(ppm)}
}

func TestCO2_BangBangThresholds(t *testing.T) {
	s, valve, _ := newTestEnvironment(t)

	// Target 800, tolerance 24: switch band is a quarter tolerance wide.
	now := at(10, 0, 0)
	s.now = func() time.Time { return now }

	s.Update(context.Background(), co2Snap(790))
	if !s.co2On {
		t.Fatalf("valve should open below the fast band")
	}
	for _, ch := range co2Channels {
		if !valve.state(ch) {
			t.Fatalf("valve channel %d not driven open", ch)
		}
	}

	// Inside the fine band the valve holds.
	now = now.Add(20 * time.Second)
	before := valve.calls
	s.Update(context.Background(), co2Snap(800))
	if !s.co2On || valve.calls != before {
		t.Fatalf("valve moved inside the hold band")
	}

	now = now.Add(20 * time.Second)
	s.Update(context.Background(), co2Snap(810))
	if s.co2On {
		t.Fatalf("valve should close above the fast band")
	}
}

func TestCO2_ThrottleAndEmergencyBypass(t *testing.T) {
	s, _, _ := newTestEnvironment(t)

	now := at(10, 0, 0)
	s.now = func() time.Time { return now }

	s.Update(context.Background(), co2Snap(790))
	if !s.co2On {
		t.Fatalf("precondition: valve open")
	}

	// Above the close threshold but inside the throttle window: held.
	now = now.Add(5 * time.Second)
	s.Update(context.Background(), co2Snap(810))
	if !s.co2On {
		t.Fatalf("throttle should have held the valve open")
	}

	// Far outside the band: throttle does not apply.
	now = now.Add(2 * time.Second)
	s.Update(context.Background(), co2Snap(880))
	if s.co2On {
		t.Fatalf("emergency reading did not bypass the throttle")
	}
}

func TestCO2_PartialSuccessCommits(t *testing.T) {
	s, valve, _ := newTestEnvironment(t)
	valve.failChannels[1] = true

	s.now = func() time.Time { return at(10, 0, 0) }
	s.Update(context.Background(), co2Snap(700))

	if !s.co2On {
		t.Fatalf("one working channel should be enough to commit the state")
	}
	if !valve.state(2) {
		t.Fatalf("surviving channel not driven")
	}
}

func TestCO2_TotalFailureHoldsState(t *testing.T) {
	s, valve, _ := newTestEnvironment(t)
	valve.failChannels[1] = true
	valve.failChannels[2] = true

	s.now = func() time.Time { return at(10, 0, 0) }
	s.Update(context.Background(), co2Snap(700))

	if s.co2On {
		t.Fatalf("state committed although no channel accepted")
	}
	if !s.lastCO2Update.IsZero() {
		t.Fatalf("failed command must not consume the throttle window")
	}
}

func TestCO2_ManualModes(t *testing.T) {
	s, valve, _ := newTestEnvironment(t)
	s.now = func() time.Time { return at(10, 0, 0) }

	if err := s.SetCO2Mode(context.Background(), "sideways"); !errors.Is(err, errInvalidCO2Mode) {
		t.Fatalf("err = %v, want errInvalidCO2Mode", err)
	}

	if err := s.SetCO2Mode(context.Background(), models.CO2ModeManualOn); err != nil {
		t.Fatalf("SetCO2Mode: %v", err)
	}
	if !s.co2On || !valve.state(1) {
		t.Fatalf("manual_on did not open the valve immediately")
	}

	// High reading must not close a manually opened valve.
	s.Update(context.Background(), co2Snap(2000))
	if !s.co2On {
		t.Fatalf("auto logic overrode manual_on")
	}

	if err := s.SetCO2Mode(context.Background(), models.CO2ModeManualOff); err != nil {
		t.Fatalf("SetCO2Mode: %v", err)
	}
	if s.co2On {
		t.Fatalf("manual_off did not close the valve")
	}
}

func TestCO2_NoReadingNoDecision(t *testing.T) {
	s, valve, _ := newTestEnvironment(t)
	s.now = func() time.Time { return at(10, 0, 0) }

	s.Update(context.Background(), models.SensorSnapshot{})
	if valve.calls != 0 {
		t.Fatalf("controller acted without a CO2 reading")
	}
}

func TestFans_ModeSwitchDrivesBank(t *testing.T) {
	s, _, gw := newTestEnvironment(t)
	s.now = func() time.Time { return at(10, 0, 0) }

	if err := s.SetFanMode(context.Background(), "sideways", 0, 0); !errors.Is(err, errInvalidFanMode) {
		t.Fatalf("err = %v, want errInvalidFanMode", err)
	}

	if err := s.SetFanMode(context.Background(), models.FanModeContinuous, 0, 0); err != nil {
		t.Fatalf("SetFanMode: %v", err)
	}
	for _, ch := range fanChannels {
		if !gw.GetChannel(ch) {
			t.Fatalf("fan channel %d not on in continuous mode", ch)
		}
	}

	if err := s.SetFanMode(context.Background(), models.FanModeOff, 0, 0); err != nil {
		t.Fatalf("SetFanMode: %v", err)
	}
	for _, ch := range fanChannels {
		if gw.GetChannel(ch) {
			t.Fatalf("fan channel %d still on after mode off", ch)
		}
	}
}

func TestFans_IntermittentTimer(t *testing.T) {
	s, _, gw := newTestEnvironment(t)

	now := at(10, 0, 0)
	s.now = func() time.Time { return now }

	if err := s.SetFanMode(context.Background(), models.FanModeIntermittent, 5, 10); err != nil {
		t.Fatalf("SetFanMode: %v", err)
	}
	if !s.fansOn {
		t.Fatalf("intermittent mode should start with an on phase")
	}

	now = now.Add(4 * time.Minute)
	s.UpdateFans(context.Background())
	if !s.fansOn {
		t.Fatalf("fans stopped before the on phase ended")
	}

	now = now.Add(1 * time.Minute)
	s.UpdateFans(context.Background())
	if s.fansOn || gw.GetChannel(fanChannels[0]) {
		t.Fatalf("fans still on after the on phase")
	}

	now = now.Add(9 * time.Minute)
	s.UpdateFans(context.Background())
	if s.fansOn {
		t.Fatalf("fans restarted before the off phase ended")
	}

	now = now.Add(1 * time.Minute)
	s.UpdateFans(context.Background())
	if !s.fansOn {
		t.Fatalf("fans did not restart after the off phase")
	}
}

func TestAC_RelayIsFatalIROptional(t *testing.T) {
	s, _, gw := newTestEnvironment(t)
	s.now = func() time.Time { return at(10, 0, 0) }

	gw.failWrites = true
	if err := s.SetACPower(context.Background(), true); err == nil {
		t.Fatalf("relay failure must fail the call")
	}
	if s.acOn {
		t.Fatalf("ac state committed despite relay failure")
	}

	gw.failWrites = false
	if err := s.SetACPower(context.Background(), true); err != nil {
		t.Fatalf("SetACPower: %v", err)
	}
	if !gw.GetChannel(acChannel) || !s.acOn {
		t.Fatalf("ac relay not driven")
	}

	// No IR bridge configured: setpoint changes have nowhere to go.
	if err := s.SetACTemperature(context.Background(), 22); err == nil {
		t.Fatalf("expected error without an IR bridge")
	}
}

func TestUpdateCO2Settings_Validation(t *testing.T) {
	s, _, _ := newTestEnvironment(t)
	s.now = func() time.Time { return at(10, 0, 0) }

	bad := defaultCO2Settings()
	bad.TolerancePPM = 0
	if err := s.UpdateCO2Settings(context.Background(), bad); err == nil {
		t.Fatalf("zero tolerance accepted")
	}

	bad = defaultCO2Settings()
	bad.Mode = "sideways"
	if err := s.UpdateCO2Settings(context.Background(), bad); !errors.Is(err, errInvalidCO2Mode) {
		t.Fatalf("err = %v, want errInvalidCO2Mode", err)
	}

	good := defaultCO2Settings()
	good.DayTargetPPM = 1000
	if err := s.UpdateCO2Settings(context.Background(), good); err != nil {
		t.Fatalf("UpdateCO2Settings: %v", err)
	}
	if s.CO2Settings().DayTargetPPM != 1000 {
		t.Fatalf("settings not applied")
	}
}

func TestCO2_SwitchBandFloorsToWholePPM(t *testing.T) {
	s, valve, _ := newTestEnvironment(t)
	s.cfg.TolerancePPM = 50
	s.now = func() time.Time { return at(10, 0, 0) }

	// Tolerance 50 gives a switch band of 12 whole ppm, so 787.8 sits
	// below 788 and opens the valve. An unfloored band of 12.5 would
	// leave it shut.
	s.Update(context.Background(), co2Snap(787.8))
	if !s.co2On {
		t.Fatalf("valve closed at 787.8 ppm with switch band 12")
	}
	for _, ch := range co2Channels {
		if !valve.state(ch) {
			t.Fatalf("valve channel %d not driven open", ch)
		}
	}
}
