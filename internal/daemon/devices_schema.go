package daemon

// DeviceFileSchema is the JSON Schema for simulated-device definition files
const DeviceFileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["devices"],
  "properties": {
    "devices": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {
            "type": "string",
            "minLength": 1,
            "description": "Unique device name"
          },
          "supportedFeatures": {
            "type": "array",
            "items": { "type": "string" }
          },
          "supportsInline": { "type": "boolean" },
          "supportsVr": { "type": "boolean" },
          "supportsAr": { "type": "boolean" },
          "viewerOrigin": { "type": "object" },
          "floorOrigin": { "type": "object" },
          "views": {
            "type": "array",
            "items": { "type": "object" }
          }
        }
      }
    },
    "scenarios": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["device", "schedule", "message"],
        "properties": {
          "device": {
            "type": "string",
            "minLength": 1,
            "description": "Name of the device the message is sent to"
          },
          "schedule": {
            "type": "string",
            "minLength": 1,
            "description": "Cron expression, standard five fields or @every / @hourly descriptors"
          },
          "message": {
            "type": "object",
            "required": ["kind"],
            "properties": {
              "kind": {
                "type": "string",
                "enum": [
                  "set-views",
                  "set-viewer-origin",
                  "set-floor-origin",
                  "visibility-change",
                  "add-input-source",
                  "remove-input-source",
                  "trigger-select",
                  "disconnect"
                ]
              },
              "views": {
                "type": "array",
                "items": { "type": "object" }
              },
              "viewerOrigin": { "type": "object" },
              "floorOrigin": { "type": "object" },
              "visibility": { "type": "string" },
              "input": { "type": "object" },
              "inputId": { "type": "integer" },
              "selectKind": { "type": "string" },
              "selectPhase": { "type": "string" }
            }
          }
        }
      }
    }
  }
}`
