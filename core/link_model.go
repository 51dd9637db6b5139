package core

import "math"

const speedOfLight = 299700000.0 // m/s, value used by the reference link budget

// LinkModel describes the mmWave radio used for AP and relay links. The
// zero value is not useful; start from DefaultLinkModel.
type LinkModel struct {
	// BandwidthHz is the channel bandwidth.
	BandwidthHz float64 `yaml:"bandwidth_hz" json:"bandwidth_hz"`
	// CarrierHz is the carrier frequency.
	CarrierHz float64 `yaml:"carrier_hz" json:"carrier_hz"`
	// BudgetDB is transmit power plus antenna gains minus noise floor.
	BudgetDB float64 `yaml:"budget_db" json:"budget_db"`
	// PathLossExponent scales the free-space path loss term.
	PathLossExponent float64 `yaml:"path_loss_exponent" json:"path_loss_exponent"`
	// ShadowingStdDevDB is the log-normal shadowing deviation.
	ShadowingStdDevDB float64 `yaml:"shadowing_stddev_db" json:"shadowing_stddev_db"`
	// LimitBps caps any single link's usable rate.
	LimitBps float64 `yaml:"limit_bps" json:"limit_bps"`

	// Per-hop latency constants in milliseconds.
	RenderMs  float64 `yaml:"render_ms" json:"render_ms"`
	NetworkMs float64 `yaml:"network_ms" json:"network_ms"`
	BeamMs    float64 `yaml:"beam_ms" json:"beam_ms"`

	// FrameBits is the payload delivered to a node every timestep.
	FrameBits float64 `yaml:"frame_bits" json:"frame_bits"`
}

// DefaultLinkModel is a 60 GHz, 7 GHz-wide link carrying one uncompressed
// frame per step.
func DefaultLinkModel() LinkModel {
	return LinkModel{
		BandwidthHz:       7e9,
		CarrierHz:         60e9,
		BudgetDB:          116,
		PathLossExponent:  2,
		ShadowingStdDevDB: 5.8,
		LimitBps:          5598720000,
		RenderMs:          6.1,
		NetworkMs:         2.4,
		BeamMs:            1.01,
		FrameBits:         62208000,
	}
}

// PathLossDB returns the distance-dependent loss for a link of length d.
func (m LinkModel) PathLossDB(d float64) float64 {
	return m.PathLossExponent * 10 * math.Log10(4*math.Pi*d*m.CarrierHz/speedOfLight)
}

// Capacity returns the Shannon rate of a link of length d given a standard
// normal shadowing sample. The result is not capped; see Cap.
func (m LinkModel) Capacity(d, shadow float64) float64 {
	if d <= 0 {
		return m.LimitBps
	}
	snrDB := m.BudgetDB - m.PathLossDB(d) + m.ShadowingStdDevDB*shadow
	return m.BandwidthHz * math.Log2(1+math.Pow(10, snrDB/10))
}

// Cap clamps a rate to the link limit.
func (m LinkModel) Cap(bps float64) float64 {
	if m.LimitBps > 0 && bps > m.LimitBps {
		return m.LimitBps
	}
	return bps
}

// HopDelayMs is the fixed processing latency of one delivery.
func (m LinkModel) HopDelayMs() float64 {
	return m.RenderMs + m.NetworkMs + m.BeamMs
}

// TransferMs is the airtime of sending the frame `frames` times at bps.
func (m LinkModel) TransferMs(bps float64, frames int) float64 {
	if bps <= 0 {
		return math.Inf(1)
	}
	return float64(frames) * m.FrameBits * 1000 / bps
}
