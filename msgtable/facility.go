package msgtable

import "strconv"

// Facility identifies the subsystem that defined a status value.
type Facility uint16

// Documented facility values. See MS-ERREF 2.3.1 and ntstatus.h (10.0.14393 SDK).
const (
	FacilityNull             Facility = 0x00 // not defined anywhere, keeps plain event ids quiet
	FacilityDebugger         Facility = 0x01
	FacilityRpcRuntime       Facility = 0x02
	FacilityRpcStubs         Facility = 0x03
	FacilityIoError          Facility = 0x04
	FacilityCodClassError    Facility = 0x06
	FacilityWin32            Facility = 0x07
	FacilityNtCert           Facility = 0x08
	FacilitySspi             Facility = 0x09
	FacilityTerminalServer   Facility = 0x0A
	FacilityMuiError         Facility = 0x0B
	FacilityUsbError         Facility = 0x10
	FacilityHidError         Facility = 0x11
	FacilityFirewireError    Facility = 0x12
	FacilityClusterError     Facility = 0x13
	FacilityAcpiError        Facility = 0x14
	FacilitySxsError         Facility = 0x15
	FacilityManifestError    Facility = 0x17
	FacilityTransaction      Facility = 0x19
	FacilityCommonLog        Facility = 0x1A
	FacilityVideo            Facility = 0x1B
	FacilityFilterManager    Facility = 0x1C
	FacilityMonitor          Facility = 0x1D
	FacilityGraphicsKernel   Facility = 0x1E
	FacilityDriverFramework  Facility = 0x20
	FacilityFveError         Facility = 0x21
	FacilityFwpError         Facility = 0x22
	FacilityNdisError        Facility = 0x23
	FacilityTpm              Facility = 0x29
	FacilityRtpm             Facility = 0x2A
	FacilityHypervisor       Facility = 0x35
	FacilityIpSec            Facility = 0x36
	FacilityVirtualization   Facility = 0x37
	FacilityVolumeManager    Facility = 0x38
	FacilityBcd              Facility = 0x39
	FacilityDis              Facility = 0x3C
	FacilityWin32NtUser      Facility = 0x3E
	FacilityWin32NtGdi       Facility = 0x3F
	FacilityResumeKeyFilter  Facility = 0x40
	FacilityRdbss            Facility = 0x41
	FacilityBthAtt           Facility = 0x42
	FacilitySecureBoot       Facility = 0x43
	FacilityAudioKernel      Facility = 0x44
	FacilityVsm              Facility = 0x45
	FacilityVolSnap          Facility = 0x50
	FacilitySdBus            Facility = 0x51
	FacilitySharedVhdx       Facility = 0x5C
	FacilitySmb              Facility = 0x5D
	FacilityInterix          Facility = 0x99
	FacilitySpaces           Facility = 0xE7
	FacilitySecurityCore     Facility = 0xE8
	FacilitySystemIntegrity  Facility = 0xE9
	FacilityLicensing        Facility = 0xEA
	FacilityPlatformManifest Facility = 0xEB

	// Highest value defined by the SDK the table was taken from.
	FacilityMaximum Facility = 0xEC
)

var facilityNames = map[Facility]string{
	FacilityNull:             "Null",
	FacilityDebugger:         "Debugger",
	FacilityRpcRuntime:       "RpcRuntime",
	FacilityRpcStubs:         "RpcStubs",
	FacilityIoError:          "IoError",
	FacilityCodClassError:    "CodClassError",
	FacilityWin32:            "Win32",
	FacilityNtCert:           "NtCert",
	FacilitySspi:             "Sspi",
	FacilityTerminalServer:   "TerminalServer",
	FacilityMuiError:         "MuiError",
	FacilityUsbError:         "UsbError",
	FacilityHidError:         "HidError",
	FacilityFirewireError:    "FirewireError",
	FacilityClusterError:     "ClusterError",
	FacilityAcpiError:        "AcpiError",
	FacilitySxsError:         "SxsError",
	FacilityManifestError:    "ManifestError",
	FacilityTransaction:      "Transaction",
	FacilityCommonLog:        "CommonLog",
	FacilityVideo:            "Video",
	FacilityFilterManager:    "FilterManager",
	FacilityMonitor:          "Monitor",
	FacilityGraphicsKernel:   "GraphicsKernel",
	FacilityDriverFramework:  "DriverFramework",
	FacilityFveError:         "FveError",
	FacilityFwpError:         "FwpError",
	FacilityNdisError:        "NdisError",
	FacilityTpm:              "Tpm",
	FacilityRtpm:             "Rtpm",
	FacilityHypervisor:       "Hypervisor",
	FacilityIpSec:            "IpSec",
	FacilityVirtualization:   "Virtualization",
	FacilityVolumeManager:    "VolumeManager",
	FacilityBcd:              "Bcd",
	FacilityDis:              "Dis",
	FacilityWin32NtUser:      "Win32NtUser",
	FacilityWin32NtGdi:       "Win32NtGdi",
	FacilityResumeKeyFilter:  "ResumeKeyFilter",
	FacilityRdbss:            "Rdbss",
	FacilityBthAtt:           "BthAtt",
	FacilitySecureBoot:       "SecureBoot",
	FacilityAudioKernel:      "AudioKernel",
	FacilityVsm:              "Vsm",
	FacilityVolSnap:          "VolSnap",
	FacilitySdBus:            "SdBus",
	FacilitySharedVhdx:       "SharedVhdx",
	FacilitySmb:              "Smb",
	FacilityInterix:          "Interix",
	FacilitySpaces:           "Spaces",
	FacilitySecurityCore:     "SecurityCore",
	FacilitySystemIntegrity:  "SystemIntegrity",
	FacilityLicensing:        "Licensing",
	FacilityPlatformManifest: "PlatformManifest",
}

// FacilityClass grades how much is known about a facility value.
type FacilityClass uint8

const (
	FacilityDocumented   FacilityClass = iota // present in the table
	FacilityUndocumented                      // within the known range but not named
	FacilityInvalid                           // beyond FacilityMaximum
)

func (c FacilityClass) String() string {
	switch c {
	case FacilityDocumented:
		return "documented"
	case FacilityUndocumented:
		return "undocumented"
	default:
		return "invalid"
	}
}

// Name returns the documented name of the facility.
func (f Facility) Name() (string, bool) {
	name, ok := facilityNames[f]
	return name, ok
}

// Class never rejects a value, unknown facilities stay usable as numbers.
func (f Facility) Class() FacilityClass {
	if _, ok := facilityNames[f]; ok {
		return FacilityDocumented
	}
	if f <= FacilityMaximum {
		return FacilityUndocumented
	}
	return FacilityInvalid
}

func (f Facility) String() string {
	if name, ok := facilityNames[f]; ok {
		return name
	}
	return "Facility(" + strconv.Itoa(int(f)) + ")"
}
