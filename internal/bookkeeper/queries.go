package bookkeeper

const (
	receivedAtQuery = `
SELECT MIN(time)
FROM dicom_series
WHERE study_uid = $1`

	processingTimesQuery = `
SELECT
    MIN(te.time) FILTER (WHERE UPPER(te.event) = 'PROCESS_BEGIN'),
    MIN(te.time) FILTER (WHERE UPPER(te.event) = 'PROCESS_COMPLETE')
FROM task_events te
JOIN tasks t ON te.task_id = t.id
WHERE t.study_uid = $1
   OR t.series_uid IN (SELECT series_uid FROM dicom_series WHERE study_uid = $1)`

	studySeriesQuery = `
SELECT
    series_uid,
    study_uid,
    time AS received_at,
    tag_patientname,
    tag_patientid,
    tag_studydescription,
    tag_seriesdescription,
    tag_modality
FROM dicom_series
WHERE study_uid = $1
ORDER BY time ASC`

	studyTasksQuery = `
SELECT
    t.id AS task_id,
    t.parent_id,
    t.time AS created_at,
    t.series_uid,
    t.study_uid,
    t.data::text AS data
FROM tasks t
WHERE t.study_uid = $1
   OR t.series_uid IN (SELECT series_uid FROM dicom_series WHERE study_uid = $1)
ORDER BY t.time ASC`

	taskEventsQuery = `
SELECT task_id, time, sender, event, target, info
FROM task_events
WHERE task_id = ANY($1)
ORDER BY time ASC`

	recentStudiesQuery = `
SELECT
    study_uid,
    MIN(time) AS first_received,
    MAX(time) AS last_received,
    COUNT(*) AS series_count,
    MAX(tag_patientname) AS patient_name,
    MAX(tag_studydescription) AS study_description
FROM dicom_series
WHERE time > $1 AND study_uid IS NOT NULL
GROUP BY study_uid
ORDER BY first_received DESC
LIMIT $2`

	latestTaskQuery = `
SELECT
    t.id AS task_id,
    t.parent_id,
    t.time AS created_at,
    t.series_uid,
    t.study_uid,
    t.data::text AS data
FROM tasks t
WHERE t.study_uid = $1
ORDER BY t.time DESC
LIMIT 1`

	studySummaryQuery = `
SELECT COUNT(*), MIN(time)
FROM dicom_series
WHERE study_uid = $1`

	recentTaskEventsQuery = `
SELECT te.task_id, te.time, te.sender, te.event, te.target, te.info
FROM task_events te
JOIN tasks t ON te.task_id = t.id
WHERE t.study_uid = $1
ORDER BY te.time DESC
LIMIT $2`

	allSeriesQuery = `
SELECT DISTINCT
    ds.study_uid,
    ds.series_uid,
    ds.tag_patientname,
    ds.tag_studydescription,
    ds.time AS received_time,
    MAX(t.time) AS last_task_time
FROM dicom_series ds
LEFT JOIN tasks t ON ds.study_uid = t.study_uid
WHERE ds.study_uid IS NOT NULL
GROUP BY ds.study_uid, ds.series_uid, ds.tag_patientname, ds.tag_studydescription, ds.time
ORDER BY ds.study_uid`
)
