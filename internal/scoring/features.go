package scoring

import (
	"math"

	telemetry "stancesense-cloud/internal/telemetry/domain"
)

// Feature names expected by the learned models.
const (
	featureEMGWristRMS   = "emg_wrist_rms"
	featureEMGArmRMS     = "emg_arm_rms"
	featureEMGRatio      = "emg_ratio"
	featureEMGBurstCount = "emg_burst_count"
	featureAccelMagMean  = "accel_mag_mean"
	featureAccelMagStd   = "accel_mag_std"
)

// A single packet carries instantaneous readings only, so windowed features
// are substituted with constants.
const (
	constBurstCount  = 0
	constAccelMagStd = 0
)

// BuildFeatures maps a packet onto the feature vector the learned models were
// trained against.
func BuildFeatures(packet telemetry.SensorPacket) map[string]float64 {
	ratio := 0.0
	if packet.Rigidity.EMGArm != 0 {
		ratio = packet.Rigidity.EMGWrist / packet.Rigidity.EMGArm
	}
	accelMag := math.Sqrt(
		packet.Safety.AccelXG*packet.Safety.AccelXG +
			packet.Safety.AccelYG*packet.Safety.AccelYG +
			packet.Safety.AccelZG*packet.Safety.AccelZG)

	return map[string]float64{
		featureEMGWristRMS:   packet.Rigidity.EMGWrist,
		featureEMGArmRMS:     packet.Rigidity.EMGArm,
		featureEMGRatio:      ratio,
		featureEMGBurstCount: constBurstCount,
		featureAccelMagMean:  accelMag,
		featureAccelMagStd:   constAccelMagStd,
	}
}
