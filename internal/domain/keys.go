package domain

// KeyPrefix namespaces every key zonemap writes to the shared store.
const KeyPrefix = "zonemap:"
