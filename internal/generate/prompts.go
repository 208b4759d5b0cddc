package generate

const promptAnalyzeIntent = `You are an expert system analyst. Extract the app name and use case summary from the user's request.
Format your response as JSON with 'app_name' and 'use_case_summary' keys.
The app name should be short, clean, and title-cased.
Only return a valid JSON object without any additional text or explanation.`

const promptUseCases = `Generate entities and pages for the application based on the use case summary.
Each entity should have fields with types (string, number, boolean, select, date).
Each page should have a title, path, icon, and purpose.
Format as JSON with 'entities' and 'pages' arrays.
Only return a valid JSON object without any additional text or explanation.`

const promptPageConfigs = `Create a detailed UI configuration with pages, zones, and components based on the provided entities and pages.

For each page, create at least two zones (e.g., header, main, sidebar, footer).

Use these components appropriately:
- DataTable: For displaying lists of data with sortable columns
- Form: For creating or editing entity records
- MetricCard: For displaying summary statistics
- Chart: For visualizing data trends or distributions

Each zone should have:
- title: A string title for the zone
- components: An array of components

Each component should have:
- type: The component type (DataTable, Form, MetricCard, Chart)
- title: A string title for the component
- props: An object containing all necessary properties for that component

Format as JSON with a 'pages' object, with each page ID as a key containing the full page configuration.

Only return a valid JSON object without any additional text or explanation.`

const promptMockData = `Generate realistic mock data for each entity.
Create 5-10 records per entity.
Ensure foreign keys match between related entities.
Use realistic values for dates and enums.
Format as JSON with entity names as keys and record arrays as values.
Only return a valid JSON object without any additional text or explanation.`

const promptDetectEdit = `Analyze the edit request and extract:
- edit_target: page, component, data, field, or style
- target_page: which page to modify
- target_component: which component to modify
- operation: add, remove, update, add_field, remove_field, modify_field_type, add_entity, or remove_entity
- modification_details: structured description of changes
Format as JSON with these fields.
Only return a valid JSON object without any additional text or explanation.`

const promptApplyPatch = `Apply the requested changes to the configuration.
Preserve existing structure and only modify what's needed.
Return the complete updated configuration as JSON.
Only return a valid JSON object without any additional text or explanation.`

const promptRegenerateData = `Update mock data to match schema changes.
Preserve existing records where possible.
Add new fields or records as needed.
Return complete updated mock data as JSON.
Only return a valid JSON object without any additional text or explanation.`
