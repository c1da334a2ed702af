package httpapi

// Every non-entity response carries the `{info: ...}` envelope: the
// success payload is the created/affected id, the error payload a
// human-readable message. Getters return entity JSON directly.

const internalErrorMessage = "An internal server error occurred."

func Info(v any) map[string]any {
	return map[string]any{"info": v}
}
