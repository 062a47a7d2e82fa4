package kernelspec

// Info describes the kernel implementation to front-ends.
type Info struct {
	Implementation string `json:"implementation"`
	Language       string `json:"language"`
	Banner         string `json:"banner"`
	FileExtension  string `json:"file_extension"`
}

// KernelInfo returns the kernel's self-description.
func KernelInfo() Info {
	return Info{
		Implementation: "K Kernel",
		Language:       "k",
		Banner:         "K Kernel running ngn/k",
		FileExtension:  ".k",
	}
}
