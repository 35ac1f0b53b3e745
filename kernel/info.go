package kernel

import "github.com/r-wasm/jupyterlite-webr-kernel/protocol"

const (
	implementation        = "webr"
	implementationVersion = "0.4.2"
	languageVersion       = "4.4.0"
)

func kernelInfo() protocol.KernelInfoReply {
	return protocol.KernelInfoReply{
		Status:                "ok",
		ProtocolVersion:       protocol.Version,
		Implementation:        implementation,
		ImplementationVersion: implementationVersion,
		LanguageInfo: protocol.LanguageInfo{
			Name:          "R",
			Version:       languageVersion,
			Mimetype:      "text/x-r-source",
			FileExtension: ".R",
		},
		Banner: "webR - R in the browser (R " + languageVersion + ")",
		HelpLinks: []protocol.HelpLink{
			{Text: "webR documentation", URL: "https://docs.r-wasm.org/webr/latest/"},
			{Text: "R manuals", URL: "https://cran.r-project.org/manuals.html"},
		},
	}
}
