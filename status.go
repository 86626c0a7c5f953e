package hyperstream

import "strconv"

// MessageStatus is the status code attached to every message sent to the engine.
type MessageStatus int

const (
	transientFlag MessageStatus = 0x40000000

	// StatusInfo is an informational message.
	StatusInfo MessageStatus = 1
	// StatusWarning is a warning message.
	StatusWarning MessageStatus = 2
	// StatusError is an error message.
	StatusError MessageStatus = 3
	// StatusComplete tells the engine the plugin has finished.
	StatusComplete MessageStatus = 4
	// StatusFieldConversionError reports a field conversion problem.
	StatusFieldConversionError MessageStatus = 5
	// StatusFileInput announces a file read by the plugin.
	StatusFileInput MessageStatus = 8
	// StatusFileOutput announces a file written by the plugin.
	StatusFileOutput MessageStatus = 9
	// StatusUpdateOutputMetaInfo carries the schema of an output anchor.
	StatusUpdateOutputMetaInfo MessageStatus = 10
	// StatusRecordCount carries "name|recordCount|totalDataSize" for an output anchor.
	StatusRecordCount MessageStatus = 50
	// StatusBrowseEverywhereFileName carries the file backing a browse-everywhere sink.
	StatusBrowseEverywhereFileName MessageStatus = 70

	// StatusTransientInfo is an informational message the engine does not persist.
	StatusTransientInfo = transientFlag | StatusInfo
	// StatusTransientWarning is a warning the engine does not persist.
	StatusTransientWarning = transientFlag | StatusWarning
	// StatusTransientFieldConversionError is a conversion error the engine does not persist.
	StatusTransientFieldConversionError = transientFlag | StatusFieldConversionError
)

// IsTransient reports whether the transient flag is set.
func (s MessageStatus) IsTransient() bool {
	return s&transientFlag != 0
}

// String returns a readable name for the status.
func (s MessageStatus) String() string {
	name := ""

	switch s &^ transientFlag {
	case StatusInfo:
		name = "info"
	case StatusWarning:
		name = "warning"
	case StatusError:
		name = "error"
	case StatusComplete:
		name = "complete"
	case StatusFieldConversionError:
		name = "field_conversion_error"
	case StatusFileInput:
		name = "file_input"
	case StatusFileOutput:
		name = "file_output"
	case StatusUpdateOutputMetaInfo:
		name = "update_output_meta_info"
	case StatusRecordCount:
		name = "record_count"
	case StatusBrowseEverywhereFileName:
		name = "browse_everywhere_file_name"
	default:
		return "status(" + strconv.Itoa(int(s)) + ")"
	}

	if s.IsTransient() {
		return "transient_" + name
	}

	return name
}

// RecordCountMessage formats the payload of a StatusRecordCount message.
func RecordCountMessage(anchor string, recordCount, totalDataSize uint64) string {
	return anchor + "|" + strconv.FormatUint(recordCount, 10) + "|" + strconv.FormatUint(totalDataSize, 10)
}
